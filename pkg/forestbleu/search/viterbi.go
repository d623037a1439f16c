package search

import (
	"fmt"

	"github.com/cognicore/forestbleu/pkg/forestbleu/bleu"
	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/reference"
)

// Viterbi returns the best whole-sentence derivation of g. Its BleuStats are
// recomputed by a full rescan of the text against the clipped reference
// counts, independent of the background BLEU that steered the search.
func Viterbi(g *hypergraph.Graph, weights hypergraph.FeatureVector, refs *reference.Set, sentenceID int, opts Options) (*Hypothesis, error) {
	res, err := inside(g, weights, refs, sentenceID, opts)
	if err != nil {
		return nil, err
	}
	root := g.Root()
	if res.bps[root].Edge < 0 {
		return nil, fmt.Errorf("sentence %d: %w", sentenceID, internalerr.ErrNoDerivation)
	}
	hyp := newDeriver(g, res.bps).hypothesis(root)
	hyp.BleuStats = bleu.Rescan(hyp.Text, refs, sentenceID, res.scorer.Order(), g.IsBoundary, res.scorer.RefLength())
	return hyp, nil
}
