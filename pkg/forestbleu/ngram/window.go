package ngram

import "github.com/cognicore/forestbleu/pkg/forestbleu/vocab"

// Fresh tags a word that does not belong to any child segment.
const Fresh = -1

// Window is a bounded buffer of the last order-1 words, each tagged with the
// segment it came from. Pushing a word yields every n-gram that ends at it.
// An n-gram is internal when all its words carry the same non-Fresh segment.
type Window struct {
	order int
	words [MaxOrder]vocab.Word
	segs  [MaxOrder]int
	size  int
	head  int // index of the oldest entry
}

// NewWindow creates a window for n-grams up to order.
func NewWindow(order int) *Window {
	if err := ValidateOrder(order); err != nil {
		panic("ngram.NewWindow: " + err.Error())
	}
	return &Window{order: order}
}

// Reset drops all open n-grams.
func (w *Window) Reset() {
	w.size = 0
	w.head = 0
}

// Push appends word from segment seg and calls fn for each n-gram ending at
// word, shortest first.
func (w *Window) Push(word vocab.Word, seg int, fn func(g WordVec, internal bool)) {
	var g WordVec
	internal := seg != Fresh
	g.words[0] = word
	g.n = 1
	fn(g, internal)
	hist := w.order - 1
	for k := 1; k <= w.size; k++ {
		// k-th most recent history entry
		idx := (w.head + w.size - k) % hist
		// shift and prepend
		copy(g.words[1:k+1], g.words[:k])
		g.words[0] = w.words[idx]
		g.n = uint8(k + 1)
		if w.segs[idx] != seg {
			internal = false
		}
		fn(g, internal)
	}
	if hist == 0 {
		return
	}
	if w.size < hist {
		w.words[(w.head+w.size)%hist] = word
		w.segs[(w.head+w.size)%hist] = seg
		w.size++
		return
	}
	w.words[w.head] = word
	w.segs[w.head] = seg
	w.head = (w.head + 1) % hist
}
