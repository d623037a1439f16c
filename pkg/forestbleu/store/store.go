package store

import (
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/search"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Store persists search results for the outer tuning loop
type Store interface {
	Close() error

	// Runs
	CreateRun(ctx context.Context, info RunInfo) (Run, error)
	GetRun(ctx context.Context, id string) (Run, bool, error)

	// Hypotheses, keyed by (run, sentence, span)
	SaveHypothesis(ctx context.Context, runID string, rec Record) error
	Hypotheses(ctx context.Context, runID string, sentenceID int) ([]Record, error)
	DistinctTexts(ctx context.Context, runID string, sentenceID int) (int, error)
}

// RunInfo describes the settings of a rescoring run
type RunInfo struct {
	BleuWeight float64
	Order      int
	Weights    map[string]float64
}

// Run is a stored rescoring run
type Run struct {
	ID        string
	CreatedAt time.Time
	RunInfo
}

// Record is one stored hypothesis. Viterbi results use the root span.
type Record struct {
	SentenceID   int
	Span         hypergraph.Span
	Text         string
	Features     map[string]float64
	ModelScore   float64
	BleuStats    []float64
	BleuStatsPot []float64
	Fingerprint  uint64
}

// NewRecord renders a hypothesis into a record
func NewRecord(sentenceID int, span hypergraph.Span, hyp *search.Hypothesis, voc *vocab.Vocab) Record {
	text := strings.Join(voc.Strings(hyp.Text), " ")
	return Record{
		SentenceID:   sentenceID,
		Span:         span,
		Text:         text,
		Features:     hyp.Features.Clone(),
		ModelScore:   hyp.ModelScore,
		BleuStats:    append([]float64(nil), hyp.BleuStats...),
		BleuStatsPot: append([]float64(nil), hyp.BleuStatsPot...),
		Fingerprint:  Fingerprint(text),
	}
}

// Fingerprint hashes a hypothesis text
func Fingerprint(text string) uint64 {
	return xxhash.Sum64String(text)
}

// SortRecords orders records by span
func SortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Span.Start != recs[j].Span.Start {
			return recs[i].Span.Start < recs[j].Span.Start
		}
		return recs[i].Span.End < recs[j].Span.End
	})
}

// IDSource generates monotonic ULIDs. Safe for concurrent use.
type IDSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDSource creates an ID source
func NewIDSource() *IDSource {
	return &IDSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new ID for time t
func (s *IDSource) Next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}
