// Package ngram holds the n-gram types shared by reference indexing and
// incremental BLEU scoring.
package ngram

import (
	"fmt"
	"strings"

	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// MaxOrder is the largest n-gram order a WordVec can hold.
const MaxOrder = 8

// DefaultOrder is the BLEU n-gram order.
const DefaultOrder = 4

// ValidateOrder checks that order can be used with WordVec.
func ValidateOrder(order int) error {
	if order < 1 || order > MaxOrder {
		return fmt.Errorf("n-gram order %d outside [1,%d]", order, MaxOrder)
	}
	return nil
}

// WordVec is an n-gram of at most MaxOrder words. It is comparable and can be
// used as a map key.
type WordVec struct {
	words [MaxOrder]vocab.Word
	n     uint8
}

// NewWordVec builds a WordVec from ws. It panics if len(ws) > MaxOrder.
func NewWordVec(ws ...vocab.Word) WordVec {
	if len(ws) > MaxOrder {
		panic(fmt.Sprintf("ngram.NewWordVec: %d words exceeds MaxOrder", len(ws)))
	}
	var v WordVec
	copy(v.words[:], ws)
	v.n = uint8(len(ws))
	return v
}

// Len is the order of the n-gram.
func (v WordVec) Len() int { return int(v.n) }

// At returns the i-th word.
func (v WordVec) At(i int) vocab.Word { return v.words[i] }

// Words returns a copy of the words.
func (v WordVec) Words() []vocab.Word {
	out := make([]vocab.Word, v.n)
	copy(out, v.words[:v.n])
	return out
}

// Format renders the n-gram with the tokens from voc.
func (v WordVec) Format(voc *vocab.Vocab) string {
	return "[" + strings.Join(voc.Strings(v.words[:v.n]), " ") + "]"
}

// Counter tallies n-gram occurrences for one scan.
type Counter struct {
	counts map[WordVec]int
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[WordVec]int)}
}

// Add increments the count of g.
func (c *Counter) Add(g WordVec) {
	c.counts[g]++
}

// Get returns the count of g.
func (c *Counter) Get(g WordVec) int {
	return c.counts[g]
}

// Len returns the number of distinct n-grams.
func (c *Counter) Len() int {
	return len(c.counts)
}

// Each calls fn for every distinct n-gram and its count.
func (c *Counter) Each(fn func(g WordVec, count int)) {
	for g, n := range c.counts {
		fn(g, n)
	}
}

// Count extracts every n-gram of order 1..order from text with a sliding
// window. Words for which skip returns true are dropped before windowing.
func Count(text []vocab.Word, order int, skip func(vocab.Word) bool) *Counter {
	c := NewCounter()
	win := NewWindow(order)
	for _, w := range text {
		if skip != nil && skip(w) {
			continue
		}
		win.Push(w, Fresh, func(g WordVec, _ bool) { c.Add(g) })
	}
	return c
}
