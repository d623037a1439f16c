// Package bleu computes BLEU sufficient statistics over hypergraph
// derivations, both incrementally per edge and by full rescan.
package bleu

import (
	"fmt"
	"math"
)

// Stats are BLEU sufficient statistics: for each order n = 1..N the pair
// (matches, total) at indices 2(n-1) and 2(n-1)+1, followed by the reference
// length.
type Stats []float64

// NewStats allocates zeroed statistics for the given order.
func NewStats(order int) Stats {
	return make(Stats, 2*order+1)
}

// Order is the n-gram order the statistics were built for.
func (s Stats) Order() int { return (len(s) - 1) / 2 }

// Matches returns the matched count for order n.
func (s Stats) Matches(n int) float64 { return s[2*(n-1)] }

// Total returns the hypothesis n-gram count for order n.
func (s Stats) Total(n int) float64 { return s[2*(n-1)+1] }

// RefLength returns the trailing reference length slot.
func (s Stats) RefLength() float64 { return s[len(s)-1] }

// Add accumulates other into s element-wise.
func (s Stats) Add(other Stats) {
	for i := range s {
		s[i] += other[i]
	}
}

// Clone returns a copy of s.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	copy(out, s)
	return out
}

// SentenceBackgroundBleu scores sentence statistics against a background
// pseudo-document: the two are summed before taking BLEU, and the result is
// scaled by the summed reference length. It returns NaN when the summed
// statistics are degenerate (zero counts).
func SentenceBackgroundBleu(sent, background Stats) float64 {
	if len(sent) != len(background) {
		panic(fmt.Sprintf("bleu: %d sentence stats vs %d background stats", len(sent), len(background)))
	}
	s := make(Stats, len(sent))
	for i := range sent {
		s[i] = sent[i] + background[i]
	}
	order := s.Order()
	var logBleu float64
	for n := 1; n <= order; n++ {
		logBleu += math.Log(s.Matches(n)) - math.Log(s.Total(n))
	}
	logBleu /= float64(order)
	brevity := 1.0 - s.RefLength()/s.Total(1)
	if brevity < 0 {
		logBleu += brevity
	}
	return math.Exp(logBleu) * s.RefLength()
}

// Bleu is corpus-style BLEU over the statistics with no smoothing. It is 0
// when any statistic is zero.
func Bleu(s Stats) float64 {
	for _, v := range s {
		if v == 0 {
			return 0
		}
	}
	order := s.Order()
	var logPrec float64
	for n := 1; n <= order; n++ {
		logPrec += math.Log(s.Matches(n) / s.Total(n))
	}
	return math.Exp(math.Min(0, 1-s.RefLength()/s.Total(1)) + logPrec/float64(order))
}

// Background is the pseudo-document used to smooth sentence-level BLEU. It
// starts as one count in every slot and decays towards recent oracle stats.
type Background struct {
	stats Stats
}

// NewBackground returns the all-ones pseudo-document.
func NewBackground(order int) *Background {
	b := &Background{stats: NewStats(order)}
	for i := range b.stats {
		b.stats[i] = 1
	}
	return b
}

// BackgroundFrom wraps explicit statistics.
func BackgroundFrom(s Stats) *Background {
	return &Background{stats: s.Clone()}
}

// Update sets the background to decay*background + s.
func (b *Background) Update(s Stats, decay float64) {
	for i := range b.stats {
		b.stats[i] = decay*b.stats[i] + s[i]
	}
}

// Stats returns a copy of the current background statistics.
func (b *Background) Stats() Stats { return b.stats.Clone() }
