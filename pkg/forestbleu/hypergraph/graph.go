// Package hypergraph is the read-only forest consumed by the search.
//
// Vertices and edges live in arenas owned by the Graph and refer to each
// other by index. Vertices are numbered in topological order: every child of
// an edge has a smaller index than the edge's head, and the last vertex is the
// whole-sentence root.
package hypergraph

import (
	"fmt"

	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Span is a [Start,End) source interval.
type Span struct {
	Start, End int
}

// Len is the number of source words covered.
func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// Vertex is a forest node covering a contiguous source span.
type Vertex struct {
	Span     Span
	Incoming []int // edge ids
}

// SourceCovered is the length of the vertex's span.
func (v *Vertex) SourceCovered() int { return v.Span.Len() }

// IsDeadEnd reports whether the vertex has no incoming edges.
func (v *Vertex) IsDeadEnd() bool { return len(v.Incoming) == 0 }

// Edge combines child vertices and target words into a larger hypothesis.
// Words holds one slot per position: a terminal word, or vocab.NoWord for a
// gap. The i-th gap, counting from the left, is filled by Children[i].
type Edge struct {
	Words    []vocab.Word
	Children []int
	Features FeatureVector
}

// Score is the model score of the edge under weights.
func (e *Edge) Score(weights FeatureVector) float64 {
	return e.Features.Dot(weights)
}

// TerminalCount is the number of non-gap slots.
func (e *Edge) TerminalCount() int {
	n := 0
	for _, w := range e.Words {
		if w != vocab.NoWord {
			n++
		}
	}
	return n
}

// Graph is an immutable forest.
type Graph struct {
	vertices []Vertex
	edges    []Edge
	vocab    *vocab.Vocab
}

// VertexSize is the number of vertices.
func (g *Graph) VertexSize() int { return len(g.vertices) }

// EdgeSize is the number of edges.
func (g *Graph) EdgeSize() int { return len(g.edges) }

// Vertex returns vertex i.
func (g *Graph) Vertex(i int) *Vertex { return &g.vertices[i] }

// Edge returns edge i.
func (g *Graph) Edge(i int) *Edge { return &g.edges[i] }

// Root returns the index of the whole-sentence vertex, or -1 for an empty graph.
func (g *Graph) Root() int { return len(g.vertices) - 1 }

// IsBoundary reports whether w is a boundary marker.
func (g *Graph) IsBoundary(w vocab.Word) bool { return g.vocab.IsBoundary(w) }

// Vocab returns the vocabulary the graph's words are interned in.
func (g *Graph) Vocab() *vocab.Vocab { return g.vocab }
