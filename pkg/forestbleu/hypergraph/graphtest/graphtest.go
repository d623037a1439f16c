// Package graphtest builds small forests for tests.
package graphtest

import (
	"strings"
	"testing"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Gap is the token Words reads as a gap slot.
const Gap = "_"

// Words interns a space separated slot string. Gap becomes vocab.NoWord.
func Words(t testing.TB, voc *vocab.Vocab, s string) []vocab.Word {
	t.Helper()
	var out []vocab.Word
	for _, tok := range strings.Fields(s) {
		if tok == Gap {
			out = append(out, vocab.NoWord)
			continue
		}
		w, err := voc.FindOrAdd(tok)
		if err != nil {
			t.Fatalf("intern %q: %v", tok, err)
		}
		out = append(out, w)
	}
	return out
}

// Text renders words back to a space separated string.
func Text(voc *vocab.Vocab, ws []vocab.Word) string {
	return strings.Join(voc.Strings(ws), " ")
}

// Forest wraps a hypergraph.Builder with string based edges.
type Forest struct {
	t   testing.TB
	voc *vocab.Vocab
	b   *hypergraph.Builder
}

// New starts a forest over voc.
func New(t testing.TB, voc *vocab.Vocab) *Forest {
	return &Forest{t: t, voc: voc, b: hypergraph.NewBuilder(voc)}
}

// Vertex adds a vertex covering [start,end).
func (f *Forest) Vertex(start, end int) int {
	return f.b.AddVertex(hypergraph.Span{Start: start, End: end})
}

// Edge adds an edge into head. lm is the value of the "lm" feature.
func (f *Forest) Edge(head int, words string, children []int, lm float64) int {
	return f.b.AddEdge(head, hypergraph.Edge{
		Words:    Words(f.t, f.voc, words),
		Children: children,
		Features: hypergraph.FeatureVector{"lm": lm},
	})
}

// Build finishes the graph.
func (f *Forest) Build() *hypergraph.Graph {
	f.t.Helper()
	g, err := f.b.Build()
	if err != nil {
		f.t.Fatalf("build forest: %v", err)
	}
	return g
}

// LM is a weight vector that scores edges by their "lm" feature.
func LM() hypergraph.FeatureVector {
	return hypergraph.FeatureVector{"lm": 1}
}
