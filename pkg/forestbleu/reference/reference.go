// Package reference indexes the n-gram statistics of reference translations.
package reference

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/ngram"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// maxLineBytes bounds a single reference line.
const maxLineBytes = 1 << 20

// Counts holds the merged statistics of one reference n-gram.
type Counts struct {
	Clipped int // max count in any single reference
	Total   int // sum of counts over all references
}

type sentence struct {
	ngrams map[ngram.WordVec]Counts
	length int
	seen   bool
}

// Set holds per-sentence reference n-gram counts and reference lengths. It
// is populated by Load or AddLine and read-only afterwards.
type Set struct {
	order     int
	sentences []sentence
}

// New creates an empty Set counting n-grams up to order.
func New(order int) *Set {
	if err := ngram.ValidateOrder(order); err != nil {
		panic("reference.New: " + err.Error())
	}
	return &Set{order: order}
}

// Order is the highest n-gram order indexed.
func (s *Set) Order() int { return s.order }

// Len is the number of sentences seen.
func (s *Set) Len() int { return len(s.sentences) }

// Has reports whether sentenceID has at least one reference.
func (s *Set) Has(sentenceID int) bool {
	return sentenceID >= 0 && sentenceID < len(s.sentences) && s.sentences[sentenceID].seen
}

// Length returns the reference length used for the brevity penalty: the
// shortest reference of the sentence.
func (s *Set) Length(sentenceID int) (int, bool) {
	if !s.Has(sentenceID) {
		return 0, false
	}
	return s.sentences[sentenceID].length, true
}

// NgramMatches returns the clipped or unclipped reference count of g, or 0
// when either the sentence or the n-gram is unknown.
func (s *Set) NgramMatches(sentenceID int, g ngram.WordVec, clip bool) int {
	if !s.Has(sentenceID) {
		return 0
	}
	c, ok := s.sentences[sentenceID].ngrams[g]
	if !ok {
		return 0
	}
	if clip {
		return c.Clipped
	}
	return c.Total
}

// Lookup returns the merged counts of g.
func (s *Set) Lookup(sentenceID int, g ngram.WordVec) (Counts, bool) {
	if !s.Has(sentenceID) {
		return Counts{}, false
	}
	c, ok := s.sentences[sentenceID].ngrams[g]
	return c, ok
}

// Load reads one reference file per translation. Line i of every file is a
// reference for sentence i. Files are read concurrently; interning and merging
// happen in file order on the calling goroutine since voc is not safe for
// concurrent inserts.
func (s *Set) Load(ctx context.Context, files []string, voc *vocab.Vocab) error {
	lines := make([][]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			ls, err := readLines(ctx, path)
			if err != nil {
				return err
			}
			lines[i] = ls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, ls := range lines {
		for id, line := range ls {
			if err := s.AddLine(id, line, voc); err != nil {
				return fmt.Errorf("%s:%d: %w", files[i], id+1, err)
			}
		}
		if glog.V(1) {
			glog.Infof("loaded %d references from %s", len(ls), files[i])
		}
	}
	return nil
}

func readLines(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference %s: %v: %w", path, err, internalerr.ErrLoad)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if !utf8.ValidString(line) {
			return nil, fmt.Errorf("%s:%d: invalid UTF-8: %w", path, len(lines)+1, internalerr.ErrLoad)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reference %s: %v: %w", path, err, internalerr.ErrLoad)
	}
	return lines, nil
}

// AddLine merges one space-tokenized reference for sentenceID: per n-gram
// the clipped count is the max over references and the total is the sum;
// the length is the minimum over references.
func (s *Set) AddLine(sentenceID int, line string, voc *vocab.Vocab) error {
	if sentenceID < 0 {
		return fmt.Errorf("sentence %d: %w", sentenceID, internalerr.ErrInvalidInput)
	}
	var words []vocab.Word
	for _, tok := range strings.Split(line, " ") {
		if tok == "" {
			continue
		}
		w, err := voc.FindOrAdd(tok)
		if err != nil {
			return err
		}
		words = append(words, w)
	}
	counts := ngram.Count(words, s.order, nil)

	for len(s.sentences) <= sentenceID {
		s.sentences = append(s.sentences, sentence{})
	}
	sent := &s.sentences[sentenceID]
	if sent.ngrams == nil {
		sent.ngrams = make(map[ngram.WordVec]Counts, counts.Len())
	}
	counts.Each(func(g ngram.WordVec, n int) {
		c, ok := sent.ngrams[g]
		if !ok {
			sent.ngrams[g] = Counts{Clipped: n, Total: n}
			return
		}
		c.Clipped = max(c.Clipped, n)
		c.Total += n
		sent.ngrams[g] = c
	})

	if !sent.seen || len(words) < sent.length {
		sent.length = len(words)
	}
	sent.seen = true
	return nil
}

// NgramTypes returns the number of distinct reference n-grams of sentenceID.
func (s *Set) NgramTypes(sentenceID int) int {
	if !s.Has(sentenceID) {
		return 0
	}
	return len(s.sentences[sentenceID].ngrams)
}
