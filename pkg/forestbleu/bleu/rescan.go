package bleu

import (
	"github.com/cognicore/forestbleu/pkg/forestbleu/ngram"
	"github.com/cognicore/forestbleu/pkg/forestbleu/reference"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Rescan computes exact clipped statistics of a complete text against the
// references of sentenceID. Boundary words (skip) are ignored. The trailing
// slot is set to refLength.
func Rescan(text []vocab.Word, refs *reference.Set, sentenceID, order int, skip func(vocab.Word) bool, refLength float64) Stats {
	stats := NewStats(order)
	counts := ngram.Count(text, order, skip)
	accumulate(stats, counts, refs, sentenceID)
	stats[len(stats)-1] = refLength
	return stats
}

func accumulate(stats Stats, counts *ngram.Counter, refs *reference.Set, sentenceID int) {
	counts.Each(func(g ngram.WordVec, count int) {
		n := g.Len()
		stats[(n-1)*2+1] += float64(count)
		stats[(n-1)*2] += float64(min(count, refs.NgramMatches(sentenceID, g, true)))
	})
}
