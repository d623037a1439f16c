// Package metric defines the scorer interface shared by evaluation metrics
// that work on sufficient statistics.
package metric

import (
	"fmt"
	"strings"

	"github.com/cognicore/forestbleu/pkg/forestbleu/bleu"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/ngram"
)

// Scorer turns sufficient statistics into a metric value. Statistics of
// several sentences are summed element-wise before scoring a corpus.
type Scorer interface {
	Name() string
	NumStats() int
	Score(stats []float64) float64
}

// BLEU scores n-gram precision statistics with a brevity penalty.
type BLEU struct {
	Order int
}

// Name implements Scorer.
func (b BLEU) Name() string { return "BLEU" }

// NumStats implements Scorer.
func (b BLEU) NumStats() int { return 2*b.Order + 1 }

// Score implements Scorer. It returns 0 when the statistics have the wrong
// size.
func (b BLEU) Score(stats []float64) float64 {
	if len(stats) != b.NumStats() {
		return 0
	}
	return bleu.Bleu(bleu.Stats(stats))
}

// New returns the scorer registered under name.
func New(name string, order int) (Scorer, error) {
	switch strings.ToUpper(name) {
	case "", "BLEU":
		if err := ngram.ValidateOrder(order); err != nil {
			return nil, fmt.Errorf("metric %s: %v: %w", name, err, internalerr.ErrInvalidConfig)
		}
		return BLEU{Order: order}, nil
	}
	return nil, fmt.Errorf("metric %q: %w", name, internalerr.ErrUnknownMetric)
}

// Corpus sums per-sentence statistics and scores the total.
func Corpus(s Scorer, sentences [][]float64) float64 {
	total := make([]float64, s.NumStats())
	for _, st := range sentences {
		for i := range total {
			if i < len(st) {
				total[i] += st[i]
			}
		}
	}
	return s.Score(total)
}
