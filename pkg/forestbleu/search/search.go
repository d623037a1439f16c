// Package search finds best derivations in a hypergraph under a linear
// model, optionally augmented with incremental BLEU against the references.
package search

import (
	"math"

	"github.com/cognicore/forestbleu/pkg/forestbleu/bleu"
	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/ngram"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// MinScore marks a vertex with no derivation.
var MinScore = math.Inf(-1)

// BackPointer records the winning incoming edge of a vertex and the model
// score of the derivation it roots. Edge is -1 when the vertex is unreachable.
type BackPointer struct {
	Edge  int
	Score float64
}

// ForwardPointer records the best outgoing edge of a vertex and the model
// score of the best context around it. Edge is -1 at the root and at
// vertices with no context.
type ForwardPointer struct {
	Edge  int
	Score float64
}

var none = BackPointer{Edge: -1, Score: math.Inf(-1)}

// Hypothesis is a derivation produced by the search.
type Hypothesis struct {
	Text       []vocab.Word
	Features   hypergraph.FeatureVector
	ModelScore float64
	// BleuStats are exact clipped statistics of Text (for span results,
	// of the span's own derivation).
	BleuStats bleu.Stats
	// BleuStatsPot are the statistics of the full sentence a span
	// hypothesis is spliced into. Only set by SpanViterbi.
	BleuStatsPot bleu.Stats
}

// Options control the search.
type Options struct {
	// BleuWeight scales the background BLEU added to edge scores when ranking
	// edges. Zero gives the pure model-best derivation.
	BleuWeight float64
	// Background is the pseudo-document smoothing sentence BLEU. Nil means
	// one count in every slot.
	Background bleu.Stats
	// Order is the BLEU n-gram order. Zero means ngram.DefaultOrder.
	Order int
}

func (o Options) order() int {
	if o.Order == 0 {
		return ngram.DefaultOrder
	}
	return o.Order
}

func (o Options) background() bleu.Stats {
	if o.Background == nil {
		return bleu.NewBackground(o.order()).Stats()
	}
	return o.Background
}

// deriver expands back pointers into hypotheses, memoising per vertex.
type deriver struct {
	graph *hypergraph.Graph
	bps   []BackPointer
	memo  map[int]*Hypothesis
}

func newDeriver(g *hypergraph.Graph, bps []BackPointer) *deriver {
	return &deriver{graph: g, bps: bps, memo: make(map[int]*Hypothesis)}
}

// derive returns the text and features of the best derivation at vertex.
// Callers must not modify the result.
func (d *deriver) derive(vertex int) *Hypothesis {
	if h, ok := d.memo[vertex]; ok {
		return h
	}
	h := &Hypothesis{Features: hypergraph.FeatureVector{}, ModelScore: d.bps[vertex].Score}
	if ei := d.bps[vertex].Edge; ei >= 0 {
		edge := d.graph.Edge(ei)
		h.Features.Add(edge.Features)
		child := 0
		for _, w := range edge.Words {
			if w != vocab.NoWord {
				h.Text = append(h.Text, w)
				continue
			}
			sub := d.derive(edge.Children[child])
			child++
			h.Text = append(h.Text, sub.Text...)
			h.Features.Add(sub.Features)
		}
	}
	d.memo[vertex] = h
	return h
}

// hypothesis returns an independent copy of the derivation at vertex.
func (d *deriver) hypothesis(vertex int) *Hypothesis {
	h := d.derive(vertex)
	return &Hypothesis{
		Text:       append([]vocab.Word(nil), h.Text...),
		Features:   h.Features.Clone(),
		ModelScore: h.ModelScore,
	}
}
