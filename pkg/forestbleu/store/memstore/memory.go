package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/store"
)

type recordKey struct {
	runID      string
	sentenceID int
	span       hypergraph.Span
}

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu      sync.RWMutex
	ids     *store.IDSource
	runs    map[string]store.Run
	records map[recordKey]store.Record
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		ids:     store.NewIDSource(),
		runs:    make(map[string]store.Run),
		records: make(map[recordKey]store.Record),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CreateRun implements store.Store.
func (s *Store) CreateRun(ctx context.Context, info store.RunInfo) (store.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	run := store.Run{ID: s.ids.Next(now), CreatedAt: now, RunInfo: info}
	run.Weights = copyMap(info.Weights)
	s.runs[run.ID] = run
	return run, nil
}

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return store.Run{}, false, nil
	}
	run.Weights = copyMap(run.Weights)
	return run, true, nil
}

// SaveHypothesis implements store.Store, replacing any record with the same
// sentence and span.
func (s *Store) SaveHypothesis(ctx context.Context, runID string, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	s.records[recordKey{runID, rec.SentenceID, rec.Span}] = copyRecord(rec)
	return nil
}

// Hypotheses implements store.Store.
func (s *Store) Hypotheses(ctx context.Context, runID string, sentenceID int) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Record
	for k, rec := range s.records {
		if k.runID == runID && k.sentenceID == sentenceID {
			out = append(out, copyRecord(rec))
		}
	}
	store.SortRecords(out)
	return out, nil
}

// DistinctTexts implements store.Store.
func (s *Store) DistinctTexts(ctx context.Context, runID string, sentenceID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[uint64]struct{})
	for k, rec := range s.records {
		if k.runID == runID && k.sentenceID == sentenceID {
			seen[rec.Fingerprint] = struct{}{}
		}
	}
	return len(seen), nil
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyRecord(r store.Record) store.Record {
	r.Features = copyMap(r.Features)
	r.BleuStats = append([]float64(nil), r.BleuStats...)
	r.BleuStatsPot = append([]float64(nil), r.BleuStatsPot...)
	return r
}
