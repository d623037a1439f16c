package hypergraph

import (
	"fmt"

	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Builder assembles a Graph vertex by vertex. It only checks what the arena
// layout needs (gap/child agreement and index ranges); topological order is
// checked by the search.
type Builder struct {
	g   *Graph
	err error
}

// NewBuilder starts an empty graph over voc.
func NewBuilder(voc *vocab.Vocab) *Builder {
	return &Builder{g: &Graph{vocab: voc}}
}

// AddVertex appends a vertex with no incoming edges and returns its index.
func (b *Builder) AddVertex(span Span) int {
	if b.err == nil && (span.Start < 0 || span.End < span.Start) {
		b.err = fmt.Errorf("vertex %d span %v: %w", len(b.g.vertices), span, internalerr.ErrInvalidInput)
	}
	b.g.vertices = append(b.g.vertices, Vertex{Span: span})
	return len(b.g.vertices) - 1
}

// AddEdge appends an edge into head and returns its index.
func (b *Builder) AddEdge(head int, e Edge) int {
	id := len(b.g.edges)
	if b.err != nil {
		return id
	}
	if head < 0 || head >= len(b.g.vertices) {
		b.err = fmt.Errorf("edge %d: head %d out of range: %w", id, head, internalerr.ErrInvalidInput)
		return id
	}
	gaps := 0
	for _, w := range e.Words {
		if w == vocab.NoWord {
			gaps++
		}
	}
	if gaps != len(e.Children) {
		b.err = fmt.Errorf("edge %d: %d gaps but %d children: %w", id, gaps, len(e.Children), internalerr.ErrInvalidInput)
		return id
	}
	for _, c := range e.Children {
		if c < 0 {
			b.err = fmt.Errorf("edge %d: negative child %d: %w", id, c, internalerr.ErrInvalidInput)
			return id
		}
	}
	if e.Features == nil {
		e.Features = FeatureVector{}
	}
	b.g.edges = append(b.g.edges, e)
	b.g.vertices[head].Incoming = append(b.g.vertices[head].Incoming, id)
	return id
}

// Build returns the graph, or the first error encountered while building.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	for vi := range b.g.vertices {
		for _, ei := range b.g.vertices[vi].Incoming {
			for _, c := range b.g.edges[ei].Children {
				if c >= len(b.g.vertices) {
					return nil, fmt.Errorf("edge %d: child %d out of range: %w", ei, c, internalerr.ErrInvalidInput)
				}
			}
		}
	}
	return b.g, nil
}
