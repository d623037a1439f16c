package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/glog"

	"github.com/cognicore/forestbleu/pkg/forestbleu/bleu"
	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/reference"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// SpanResult holds one full-sentence hypothesis per source span realised by
// a vertex with a derivation that reaches the root.
type SpanResult struct {
	Hypotheses map[hypergraph.Span]*Hypothesis
	// Vertex is the vertex whose inside derivation each span hypothesis
	// embeds.
	Vertex map[hypergraph.Span]int
}

// Spans returns the spans in (start, end) order.
func (r *SpanResult) Spans() []hypergraph.Span {
	spans := make([]hypergraph.Span, 0, len(r.Hypotheses))
	for s := range r.Hypotheses {
		spans = append(spans, s)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	return spans
}

// SpanViterbi finds, for every span, the best inside derivation of the span
// embedded in the best model-score context around it.
//
// The inside pass is the same as Viterbi's, BLEU included. The outside pass
// ranks outgoing edges by model score only. For each span the inside
// derivation of the last vertex (in topological order) that covers it is
// extended along forward pointers up to the root. BleuStats cover the span's
// own text with a proportional reference length; BleuStatsPot cover the
// spliced sentence.
func SpanViterbi(g *hypergraph.Graph, weights hypergraph.FeatureVector, refs *reference.Set, sentenceID int, opts Options) (*SpanResult, error) {
	res, err := inside(g, weights, refs, sentenceID, opts)
	if err != nil {
		return nil, err
	}
	root := g.Root()
	if res.bps[root].Edge < 0 {
		return nil, fmt.Errorf("sentence %d: %w", sentenceID, internalerr.ErrNoDerivation)
	}

	owner := make(map[hypergraph.Span]int)
	for vi := 0; vi < g.VertexSize(); vi++ {
		if res.bps[vi].Edge >= 0 {
			owner[g.Vertex(vi).Span] = vi
		}
	}

	fps := outside(g, weights, res)
	d := newDeriver(g, res.bps)
	order := res.scorer.Order()
	out := &SpanResult{
		Hypotheses: make(map[hypergraph.Span]*Hypothesis, len(owner)),
		Vertex:     make(map[hypergraph.Span]int, len(owner)),
	}
	for span, vi := range owner {
		if vi != root && fps[vi].Edge < 0 {
			if glog.V(1) {
				glog.Infof("sentence %d: span %v (vertex %d) has no context reaching the root", sentenceID, span, vi)
			}
			continue
		}
		hyp := d.hypothesis(vi)
		hyp.BleuStats = bleu.Rescan(hyp.Text, refs, sentenceID, order, g.IsBoundary,
			res.scorer.EffectiveRefLength(span.Len()))
		hyp.Text = splice(g, d, fps, res.heads, vi, hyp.Text)
		hyp.BleuStatsPot = bleu.Rescan(hyp.Text, refs, sentenceID, order, g.IsBoundary, res.scorer.RefLength())
		out.Hypotheses[span] = hyp
		out.Vertex[span] = vi
	}
	return out, nil
}

// outside resolves forward pointers in descending vertex order. The score
// of an outgoing edge is the forward score of its head, plus the inside
// scores of the other children, plus its own model score. The root has an
// empty context with score 0; any other vertex that is not a child of a
// reachable edge has no context.
func outside(g *hypergraph.Graph, weights hypergraph.FeatureVector, res *insideResult) []ForwardPointer {
	n := g.VertexSize()
	fps := make([]ForwardPointer, n)
	for i := 1; i <= n; i++ {
		vi := n - i
		fps[vi] = ForwardPointer{Edge: -1, Score: math.Inf(-1)}
		if vi == g.Root() {
			fps[vi].Score = 0
			continue
		}
		for _, ei := range res.outgoing[vi] {
			head := res.heads[ei]
			if fps[head].Edge < 0 && head != g.Root() {
				continue
			}
			edge := g.Edge(ei)
			score := fps[head].Score + edge.Score(weights)
			self := false
			reachable := true
			for _, sib := range edge.Children {
				if sib == vi && !self {
					self = true
					continue
				}
				if res.bps[sib].Edge < 0 {
					reachable = false
					break
				}
				score += res.bps[sib].Score
			}
			if !reachable {
				continue
			}
			if score > fps[vi].Score {
				fps[vi] = ForwardPointer{Edge: ei, Score: score}
			}
		}
	}
	return fps
}

// splice wraps text, the yield of vertex, in its outside context: at each
// forward edge, words and sibling yields left of the vertex's slot are
// prepended and those right of it appended.
func splice(g *hypergraph.Graph, d *deriver, fps []ForwardPointer, heads []int, vertex int, text []vocab.Word) []vocab.Word {
	for cur := vertex; fps[cur].Edge >= 0; cur = heads[fps[cur].Edge] {
		edge := g.Edge(fps[cur].Edge)
		var left, right []vocab.Word
		inLeft := true
		child := 0
		for _, w := range edge.Words {
			var part []vocab.Word
			if w != vocab.NoWord {
				part = []vocab.Word{w}
			} else {
				c := edge.Children[child]
				child++
				if c == cur && inLeft {
					inLeft = false
					continue
				}
				part = d.derive(c).Text
			}
			if inLeft {
				left = append(left, part...)
			} else {
				right = append(right, part...)
			}
		}
		spliced := make([]vocab.Word, 0, len(left)+len(text)+len(right))
		spliced = append(spliced, left...)
		spliced = append(spliced, text...)
		text = append(spliced, right...)
	}
	return text
}
