package search

import (
	"fmt"
	"math"

	"github.com/golang/glog"

	"github.com/cognicore/forestbleu/pkg/forestbleu/bleu"
	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/reference"
)

// insideResult is the outcome of the bottom-up pass.
type insideResult struct {
	bps      []BackPointer
	heads    []int   // edge -> head vertex
	outgoing [][]int // vertex -> edges that use it as a child
	scorer   *bleu.Scorer
}

// inside resolves every vertex in ascending order. Each incoming edge is
// ranked by its model score plus, when opts.BleuWeight is non-zero, the
// weighted background BLEU of the derivation it forms. The stored back
// pointer score is model-only: BLEU is cumulative over a span and cannot be
// summed edge by edge.
func inside(g *hypergraph.Graph, weights hypergraph.FeatureVector, refs *reference.Set, sentenceID int, opts Options) (*insideResult, error) {
	if g.VertexSize() == 0 {
		return nil, fmt.Errorf("sentence %d: empty graph: %w", sentenceID, internalerr.ErrInvalidInput)
	}
	scorer, err := bleu.NewScorer(refs, g, sentenceID, opts.background(), opts.order())
	if err != nil {
		return nil, err
	}
	res := &insideResult{
		bps:      make([]BackPointer, g.VertexSize()),
		heads:    make([]int, g.EdgeSize()),
		outgoing: make([][]int, g.VertexSize()),
		scorer:   scorer,
	}
	for i := range res.heads {
		res.heads[i] = -1
	}

	for vi := 0; vi < g.VertexSize(); vi++ {
		res.bps[vi] = none
		vertex := g.Vertex(vi)
		winnerScore := math.Inf(-1)
		var winnerStats bleu.Stats

		for _, ei := range vertex.Incoming {
			res.heads[ei] = vi
			edge := g.Edge(ei)
			incomingScore := edge.Score(weights)
			reachable := true
			for _, c := range edge.Children {
				if c >= vi {
					return nil, fmt.Errorf("sentence %d: vertex %d uses child %d: %w", sentenceID, vi, c, internalerr.ErrNotTopological)
				}
				if out := res.outgoing[c]; len(out) == 0 || out[len(out)-1] != ei {
					res.outgoing[c] = append(out, ei)
				}
				if res.bps[c].Edge < 0 {
					reachable = false
				}
				incomingScore += res.bps[c].Score
			}
			if !reachable {
				// an edge never wins through a dead child
				continue
			}

			totalScore := incomingScore
			var stats bleu.Stats
			if opts.BleuWeight != 0 {
				bleuScore, s, err := scorer.Score(ei, vi)
				if err != nil {
					return nil, err
				}
				if math.IsNaN(bleuScore) {
					glog.Warningf("sentence %d: bleu score undefined at vertex %d, stats %v", sentenceID, vi, s)
					bleuScore = 0
				}
				stats = s
				totalScore += opts.BleuWeight * bleuScore
			}
			// ties go to the later edge
			if totalScore >= winnerScore {
				winnerScore = totalScore
				res.bps[vi] = BackPointer{Edge: ei, Score: incomingScore}
				winnerStats = stats
			}
		}

		if res.bps[vi].Edge >= 0 {
			if winnerStats == nil {
				winnerStats = bleu.NewStats(scorer.Order())
			}
			if err := scorer.UpdateState(res.bps[vi].Edge, vi, winnerStats); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}
