package hypergraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph/graphtest"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

func TestBuilderWiresIncomingEdges(t *testing.T) {
	voc := vocab.New()
	f := graphtest.New(t, voc)
	leaf := f.Vertex(0, 1)
	root := f.Vertex(0, 2)
	e0 := f.Edge(leaf, "the", nil, 0)
	e1 := f.Edge(root, "_ cat", []int{leaf}, -1)
	e2 := f.Edge(root, "_ dog", []int{leaf}, -2)
	g := f.Build()

	assert.Equal(t, 2, g.VertexSize())
	assert.Equal(t, 3, g.EdgeSize())
	assert.Equal(t, root, g.Root())
	assert.Equal(t, []int{e0}, g.Vertex(leaf).Incoming)
	assert.Equal(t, []int{e1, e2}, g.Vertex(root).Incoming)
	assert.Equal(t, 2, g.Vertex(root).SourceCovered())
	assert.False(t, g.Vertex(root).IsDeadEnd())
	assert.Equal(t, 1, g.Edge(e1).TerminalCount())
	assert.InDelta(t, -2.0, g.Edge(e2).Score(graphtest.LM()), 1e-12)
	assert.Same(t, voc, g.Vocab())
}

func TestBuilderDeadEndVertex(t *testing.T) {
	voc := vocab.New()
	f := graphtest.New(t, voc)
	dead := f.Vertex(0, 1)
	g := f.Build()
	assert.True(t, g.Vertex(dead).IsDeadEnd())
}

func TestBuilderRejectsGapMismatch(t *testing.T) {
	voc := vocab.New()
	b := hypergraph.NewBuilder(voc)
	v := b.AddVertex(hypergraph.Span{Start: 0, End: 1})
	b.AddEdge(v, hypergraph.Edge{Words: graphtest.Words(t, voc, "_ a")})
	_, err := b.Build()
	require.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestBuilderRejectsBadIndexes(t *testing.T) {
	voc := vocab.New()

	b := hypergraph.NewBuilder(voc)
	b.AddEdge(0, hypergraph.Edge{})
	_, err := b.Build()
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput, "head out of range")

	b = hypergraph.NewBuilder(voc)
	v := b.AddVertex(hypergraph.Span{Start: 0, End: 1})
	b.AddEdge(v, hypergraph.Edge{Words: []vocab.Word{vocab.NoWord}, Children: []int{5}})
	_, err = b.Build()
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput, "child out of range")

	b = hypergraph.NewBuilder(voc)
	v = b.AddVertex(hypergraph.Span{Start: 0, End: 1})
	b.AddEdge(v, hypergraph.Edge{Words: []vocab.Word{vocab.NoWord}, Children: []int{-1}})
	_, err = b.Build()
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput, "negative child")

	b = hypergraph.NewBuilder(voc)
	b.AddVertex(hypergraph.Span{Start: 2, End: 1})
	_, err = b.Build()
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput, "inverted span")
}

func TestBuilderAllowsChildAfterHead(t *testing.T) {
	// topological order is checked by the search, not the builder
	voc := vocab.New()
	f := graphtest.New(t, voc)
	v0 := f.Vertex(0, 2)
	v1 := f.Vertex(0, 1)
	f.Edge(v0, "_", []int{v1}, 0)
	g := f.Build()
	assert.Equal(t, 2, g.VertexSize())
}

func TestFeatureVector(t *testing.T) {
	f := hypergraph.FeatureVector{"lm": -2, "tm": 0.5}
	w := hypergraph.FeatureVector{"lm": 0.5, "wp": 3}
	assert.InDelta(t, -1.0, f.Dot(w), 1e-12)
	assert.InDelta(t, -1.0, w.Dot(f), 1e-12)

	c := f.Clone()
	c.Add(hypergraph.FeatureVector{"lm": 1, "wp": 1})
	assert.Equal(t, hypergraph.FeatureVector{"lm": -1, "tm": 0.5, "wp": 1}, c)
	assert.Equal(t, -2.0, f["lm"], "clone is independent")

	assert.Equal(t, "lm=-1 tm=0.5 wp=1", c.String())
	assert.Empty(t, hypergraph.FeatureVector(nil).Clone())
	assert.NotNil(t, hypergraph.FeatureVector(nil).Clone())
}

func TestSpanString(t *testing.T) {
	s := hypergraph.Span{Start: 1, End: 4}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "[1,4)", s.String())
}
