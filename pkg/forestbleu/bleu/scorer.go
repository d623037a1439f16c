package bleu

import (
	"fmt"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/ngram"
	"github.com/cognicore/forestbleu/pkg/forestbleu/reference"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// VertexState caches what parents need to know about the best derivation
// fixed at a vertex: up to order-1 words at each edge of its yield, the yield
// length and the statistics of every n-gram inside it.
type VertexState struct {
	Left         []vocab.Word
	Right        []vocab.Word // left-to-right order
	TargetLength int
	Stats        Stats
}

// Scorer computes incremental BLEU for edges of one sentence's forest. Each
// n-gram of a derivation is counted by exactly one edge: the lowest edge
// whose yield contains it.
type Scorer struct {
	refs       *reference.Set
	graph      *hypergraph.Graph
	sentenceID int
	order      int
	background Stats

	states      []VertexState
	written     []bool
	totalSource float64
	refLength   float64
}

// NewScorer binds a scorer to sentenceID of graph.
func NewScorer(refs *reference.Set, graph *hypergraph.Graph, sentenceID int, background Stats, order int) (*Scorer, error) {
	if err := ngram.ValidateOrder(order); err != nil {
		return nil, fmt.Errorf("new scorer: %v: %w", err, internalerr.ErrInvalidInput)
	}
	if order > refs.Order() {
		return nil, fmt.Errorf("new scorer: order %d above reference order %d: %w", order, refs.Order(), internalerr.ErrInvalidInput)
	}
	refLength, ok := refs.Length(sentenceID)
	if !ok {
		return nil, fmt.Errorf("new scorer: sentence %d: %w", sentenceID, internalerr.ErrUnknownSentence)
	}
	if len(background) != 2*order+1 {
		return nil, fmt.Errorf("new scorer: background has %d slots, want %d: %w", len(background), 2*order+1, internalerr.ErrBadStats)
	}
	s := &Scorer{
		refs:       refs,
		graph:      graph,
		sentenceID: sentenceID,
		order:      order,
		background: background.Clone(),
		states:     make([]VertexState, graph.VertexSize()),
		written:    make([]bool, graph.VertexSize()),
		refLength:  float64(refLength),
	}
	if root := graph.Root(); root >= 0 {
		s.totalSource = float64(graph.Vertex(root).SourceCovered())
	}
	return s, nil
}

// Order is the n-gram order used by the scorer.
func (s *Scorer) Order() int { return s.order }

// RefLength is the reference length of the bound sentence.
func (s *Scorer) RefLength() float64 { return s.refLength }

// EffectiveRefLength credits the share of the reference length proportional
// to the source words covered by a vertex.
func (s *Scorer) EffectiveRefLength(covered int) float64 {
	if s.totalSource == 0 {
		return s.refLength
	}
	return float64(covered) / s.totalSource * s.refLength
}

// State returns a copy of the cached state of vertex, and whether it has
// been written.
func (s *Scorer) State(vertex int) (VertexState, bool) {
	st := s.states[vertex]
	out := VertexState{
		Left:         append([]vocab.Word(nil), st.Left...),
		Right:        append([]vocab.Word(nil), st.Right...),
		TargetLength: st.TargetLength,
		Stats:        st.Stats.Clone(),
	}
	return out, s.written[vertex]
}

// Score returns the background BLEU of the derivation formed by edge over
// the fixed states of its children, together with that derivation's
// statistics. Only n-grams that are not entirely inside a single child are
// counted here; the children's cached statistics are added wholesale. The
// score may be NaN when the statistics are degenerate.
func (s *Scorer) Score(edgeID, head int) (float64, Stats, error) {
	edge := s.graph.Edge(edgeID)
	for _, c := range edge.Children {
		if !s.written[c] {
			return 0, nil, fmt.Errorf("edge %d into vertex %d: child %d has no state: %w", edgeID, head, c, internalerr.ErrNotTopological)
		}
	}

	counts := ngram.NewCounter()
	emit := func(g ngram.WordVec, internal bool) {
		if !internal {
			counts.Add(g)
		}
	}
	win := ngram.NewWindow(s.order)
	child := 0
	for _, w := range edge.Words {
		if w != vocab.NoWord {
			if !s.graph.IsBoundary(w) {
				win.Push(w, ngram.Fresh, emit)
			}
			continue
		}
		// Each gap gets its own segment so that n-grams inside one child are
		// recognised as already counted.
		seg := child
		st := &s.states[edge.Children[child]]
		child++
		for _, cw := range st.Left {
			win.Push(cw, seg, emit)
		}
		if len(st.Left) < s.order-1 {
			// the left context is the whole yield
			continue
		}
		// Jump over the interior. N-grams ending in the right context are
		// inside the child; resetting keeps them from being joined to the
		// left context.
		win.Reset()
		for _, cw := range st.Right {
			win.Push(cw, seg, emit)
		}
	}

	stats := NewStats(s.order)
	accumulate(stats, counts, s.refs, s.sentenceID)
	for _, c := range edge.Children {
		stats.Add(s.states[c].Stats)
	}
	stats[len(stats)-1] = s.EffectiveRefLength(s.graph.Vertex(head).SourceCovered())

	return SentenceBackgroundBleu(stats, s.background), stats, nil
}

// UpdateState fixes edge as the winner at vertex. It must be called once per
// vertex, after the edge is chosen and before any parent is scored.
func (s *Scorer) UpdateState(edgeID, vertex int, stats Stats) error {
	if s.written[vertex] {
		return fmt.Errorf("update vertex %d: %w", vertex, internalerr.ErrStateWritten)
	}
	edge := s.graph.Edge(edgeID)
	for _, c := range edge.Children {
		if !s.written[c] {
			return fmt.Errorf("update vertex %d: child %d has no state: %w", vertex, c, internalerr.ErrNotTopological)
		}
	}
	width := s.order - 1
	st := VertexState{Stats: stats.Clone()}

	// left context: edge words and children's left contexts
	child := 0
	for _, w := range edge.Words {
		if len(st.Left) >= width {
			break
		}
		if w != vocab.NoWord {
			if !s.graph.IsBoundary(w) {
				st.Left = append(st.Left, w)
			}
			continue
		}
		cs := &s.states[edge.Children[child]]
		child++
		need := min(width-len(st.Left), len(cs.Left))
		st.Left = append(st.Left, cs.Left[:need]...)
	}

	// right context, scanned right to left and reversed at the end
	child = len(edge.Children) - 1
	for i := len(edge.Words) - 1; i >= 0 && len(st.Right) < width; i-- {
		w := edge.Words[i]
		if w != vocab.NoWord {
			if !s.graph.IsBoundary(w) {
				st.Right = append(st.Right, w)
			}
			continue
		}
		cs := &s.states[edge.Children[child]]
		child--
		for j := len(cs.Right) - 1; j >= 0 && len(st.Right) < width; j-- {
			st.Right = append(st.Right, cs.Right[j])
		}
	}
	for i, j := 0, len(st.Right)-1; i < j; i, j = i+1, j-1 {
		st.Right[i], st.Right[j] = st.Right[j], st.Right[i]
	}

	st.TargetLength = edge.TerminalCount()
	for _, c := range edge.Children {
		st.TargetLength += s.states[c].TargetLength
	}

	s.states[vertex] = st
	s.written[vertex] = true
	return nil
}
