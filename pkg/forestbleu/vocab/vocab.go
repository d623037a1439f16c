// Package vocab interns tokens into stable integer ids.
//
// A Vocab has two phases. While it is being populated (reference and forest
// loading) FindOrAdd may add entries; it is not safe for concurrent use in
// this phase. After Freeze every method is read-only and a Vocab may be shared
// across goroutines. FindOrAdd on a frozen Vocab fails with
// internalerr.ErrVocabFrozen for unseen tokens.
package vocab

import (
	"fmt"
	"sync/atomic"

	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
)

// Word is an interned token.
type Word uint32

// NoWord is never returned for a token. Edges use it to mark a gap slot.
const NoWord Word = 0

// DefaultBoundary lists the sentence markers reserved by New when no
// boundary tokens are given.
var DefaultBoundary = []string{"<s>", "</s>"}

// Vocab is the mapping between strings and Words.
type Vocab struct {
	id2str      []string
	str2id      map[string]Word
	numBoundary int
	frozen      atomic.Bool
}

// New creates a Vocab whose first entries are the given boundary tokens.
// Boundary entries mark node and sentence edges and are excluded from n-gram
// counting.
func New(boundary ...string) *Vocab {
	if len(boundary) == 0 {
		boundary = DefaultBoundary
	}
	v := &Vocab{
		id2str: []string{NoWord: ""},
		str2id: make(map[string]Word, len(boundary)),
	}
	for _, b := range boundary {
		if b == "" {
			panic("vocab.New: empty boundary token")
		}
		if _, ok := v.str2id[b]; ok {
			panic(fmt.Sprintf("vocab.New: duplicate boundary token %q", b))
		}
		v.str2id[b] = Word(len(v.id2str))
		v.id2str = append(v.id2str, b)
	}
	v.numBoundary = len(boundary)
	return v
}

// FindOrAdd returns the Word of tok, adding it when absent.
func (v *Vocab) FindOrAdd(tok string) (Word, error) {
	if w, ok := v.str2id[tok]; ok {
		return w, nil
	}
	if v.frozen.Load() {
		return NoWord, fmt.Errorf("add %q: %w", tok, internalerr.ErrVocabFrozen)
	}
	if tok == "" {
		return NoWord, fmt.Errorf("add empty token: %w", internalerr.ErrInvalidInput)
	}
	w := Word(len(v.id2str))
	v.id2str = append(v.id2str, tok)
	v.str2id[tok] = w
	return w, nil
}

// Find looks up tok without modifying the Vocab.
func (v *Vocab) Find(tok string) (Word, bool) {
	w, ok := v.str2id[tok]
	return w, ok
}

// String returns the token of w, or "" for NoWord and unknown ids.
func (v *Vocab) String(w Word) string {
	if int(w) >= len(v.id2str) {
		return ""
	}
	return v.id2str[w]
}

// Strings maps a word sequence back to tokens.
func (v *Vocab) Strings(ws []Word) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = v.String(w)
	}
	return out
}

// IsBoundary reports whether w is one of the reserved boundary entries.
func (v *Vocab) IsBoundary(w Word) bool {
	return w > NoWord && int(w) <= v.numBoundary
}

// Len returns the number of entries including NoWord and boundary entries.
func (v *Vocab) Len() int { return len(v.id2str) }

// Freeze ends the insert phase.
func (v *Vocab) Freeze() { v.frozen.Store(true) }

// Frozen reports whether Freeze has been called.
func (v *Vocab) Frozen() bool { return v.frozen.Load() }
