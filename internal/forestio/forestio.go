package forestio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Forest is the JSON form of one sentence's hypergraph. Vertices must be
// listed in topological order with the root last.
type Forest struct {
	Sentence int      `json:"sentence"`
	Vertices []Vertex `json:"vertices"`
}

// Vertex is the JSON form of a hypergraph vertex
type Vertex struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Edges []Edge `json:"edges"`
}

// Edge is the JSON form of a hyperedge. A null word marks a gap.
type Edge struct {
	Words    []*string          `json:"words"`
	Children []int              `json:"children"`
	Features map[string]float64 `json:"features"`
}

// Sentence pairs a sentence id with its graph
type Sentence struct {
	ID    int
	Graph *hypergraph.Graph
}

// LoadJSONL loads one forest per line. Malformed JSON lines are skipped with
// a warning; structurally invalid forests are an error.
func LoadJSONL(path string, voc *vocab.Vocab) ([]Sentence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forests %s: %w", path, err)
	}
	defer f.Close()

	var out []Sentence
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 64<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var forest Forest
		if err := json.Unmarshal([]byte(line), &forest); err != nil {
			glog.Warningf("skipping malformed forest at line %d in %s: %v", lineNo, path, err)
			continue
		}
		g, err := forest.Build(voc)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, Sentence{ID: forest.Sentence, Graph: g})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read forests %s: %w", path, err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid forests found in %s", path)
	}
	return out, nil
}

// Build interns the forest's words into voc and assembles the graph
func (f *Forest) Build(voc *vocab.Vocab) (*hypergraph.Graph, error) {
	b := hypergraph.NewBuilder(voc)
	for _, v := range f.Vertices {
		b.AddVertex(hypergraph.Span{Start: v.Start, End: v.End})
	}
	for vi, v := range f.Vertices {
		for _, e := range v.Edges {
			words := make([]vocab.Word, len(e.Words))
			for i, w := range e.Words {
				if w == nil {
					words[i] = vocab.NoWord
					continue
				}
				id, err := voc.FindOrAdd(*w)
				if err != nil {
					return nil, fmt.Errorf("vertex %d: %w", vi, err)
				}
				words[i] = id
			}
			b.AddEdge(vi, hypergraph.Edge{
				Words:    words,
				Children: e.Children,
				Features: hypergraph.FeatureVector(e.Features),
			})
		}
	}
	return b.Build()
}
