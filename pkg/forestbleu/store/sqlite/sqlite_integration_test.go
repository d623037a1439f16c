package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func record(sentence, start, end int, text string) store.Record {
	return store.Record{
		SentenceID:   sentence,
		Span:         hypergraph.Span{Start: start, End: end},
		Text:         text,
		Features:     map[string]float64{"lm": -1.5},
		ModelScore:   -1.5,
		BleuStats:    []float64{1, 2, 0, 1, 2},
		BleuStatsPot: []float64{2, 3, 1, 2, 3},
		Fingerprint:  store.Fingerprint(text),
	}
}

// TestSQLiteIntegrationRuns tests run creation and lookup
func TestSQLiteIntegrationRuns(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	before := time.Now().Add(-time.Second)
	run, err := st.CreateRun(ctx, store.RunInfo{BleuWeight: 2, Order: 4, Weights: map[string]float64{"lm": 1}})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if len(run.ID) != 26 {
		t.Errorf("expected a 26 character ULID, got %q", run.ID)
	}

	got, found, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !found {
		t.Fatal("run should be found")
	}
	if got.BleuWeight != 2 || got.Order != 4 || got.Weights["lm"] != 1 {
		t.Errorf("run mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) || got.CreatedAt.Before(before) {
		t.Errorf("created_at mismatch: got %v, want %v", got.CreatedAt, run.CreatedAt)
	}

	second, err := st.CreateRun(ctx, store.RunInfo{Order: 4})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if second.ID <= run.ID {
		t.Errorf("run IDs should increase: %s then %s", run.ID, second.ID)
	}

	if _, found, err := st.GetRun(ctx, "missing"); err != nil || found {
		t.Errorf("GetRun(missing) = found %v, err %v", found, err)
	}
}

// TestSQLiteIntegrationHypotheses tests upserts and span ordering
func TestSQLiteIntegrationHypotheses(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	run, err := st.CreateRun(ctx, store.RunInfo{Order: 2})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	for _, rec := range []store.Record{
		record(0, 1, 2, "a dog sat"),
		record(0, 0, 3, "a dog sat"),
		record(0, 0, 1, "the dog sat"),
		record(1, 0, 1, "other sentence"),
	} {
		if err := st.SaveHypothesis(ctx, run.ID, rec); err != nil {
			t.Fatalf("SaveHypothesis: %v", err)
		}
	}

	recs, err := st.Hypotheses(ctx, run.ID, 0)
	if err != nil {
		t.Fatalf("Hypotheses: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	wantSpans := []hypergraph.Span{{Start: 0, End: 1}, {Start: 0, End: 3}, {Start: 1, End: 2}}
	for i, rec := range recs {
		if rec.Span != wantSpans[i] {
			t.Errorf("record %d span: got %v, want %v", i, rec.Span, wantSpans[i])
		}
	}
	first := recs[0]
	if first.Text != "the dog sat" || first.Features["lm"] != -1.5 || first.ModelScore != -1.5 {
		t.Errorf("record mismatch: %+v", first)
	}
	if len(first.BleuStats) != 5 || first.BleuStatsPot[4] != 3 {
		t.Errorf("stats mismatch: %v %v", first.BleuStats, first.BleuStatsPot)
	}
	if first.Fingerprint != store.Fingerprint("the dog sat") {
		t.Errorf("fingerprint mismatch: %x", first.Fingerprint)
	}

	n, err := st.DistinctTexts(ctx, run.ID, 0)
	if err != nil {
		t.Fatalf("DistinctTexts: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 distinct texts, got %d", n)
	}

	// replacing a span keeps one record per span
	if err := st.SaveHypothesis(ctx, run.ID, record(0, 0, 1, "a dog sat")); err != nil {
		t.Fatalf("SaveHypothesis: %v", err)
	}
	recs, _ = st.Hypotheses(ctx, run.ID, 0)
	if len(recs) != 3 || recs[0].Text != "a dog sat" {
		t.Errorf("upsert failed: %+v", recs)
	}
	if n, _ := st.DistinctTexts(ctx, run.ID, 0); n != 1 {
		t.Errorf("expected 1 distinct text after upsert, got %d", n)
	}
}

// TestSQLiteIntegrationUnknownRun tests that records need a run
func TestSQLiteIntegrationUnknownRun(t *testing.T) {
	st := openTestStore(t)
	err := st.SaveHypothesis(context.Background(), "nope", record(0, 0, 1, "x"))
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestSQLiteIntegrationNilStats tests records without span statistics
func TestSQLiteIntegrationNilStats(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	run, err := st.CreateRun(ctx, store.RunInfo{Order: 4})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	rec := record(3, 0, 2, "x y")
	rec.BleuStatsPot = nil
	rec.Features = nil
	if err := st.SaveHypothesis(ctx, run.ID, rec); err != nil {
		t.Fatalf("SaveHypothesis: %v", err)
	}
	recs, err := st.Hypotheses(ctx, run.ID, 3)
	if err != nil {
		t.Fatalf("Hypotheses: %v", err)
	}
	if len(recs) != 1 || recs[0].BleuStatsPot != nil || recs[0].Features != nil {
		t.Errorf("expected nil stats and features, got %+v", recs)
	}
}

// TestSQLiteIntegrationConcurrentWrites tests parallel workers saving results
func TestSQLiteIntegrationConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	run, err := st.CreateRun(ctx, store.RunInfo{Order: 4})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := st.SaveHypothesis(ctx, run.ID, record(i, 0, 1, "t")); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent SaveHypothesis: %v", err)
	}

	for i := 0; i < 8; i++ {
		recs, err := st.Hypotheses(ctx, run.ID, i)
		if err != nil || len(recs) != 1 {
			t.Errorf("sentence %d: %d records, err %v", i, len(recs), err)
		}
	}
}

// TestSQLiteIntegrationMemory tests the in-memory database path
func TestSQLiteIntegrationMemory(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	run, err := st.CreateRun(ctx, store.RunInfo{Order: 4})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.SaveHypothesis(ctx, run.ID, record(0, 0, 1, "x")); err != nil {
		t.Fatalf("SaveHypothesis: %v", err)
	}
}

// TestSQLiteIntegrationUnavailable tests opening a path that cannot be created
func TestSQLiteIntegrationUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "test.db")
	_, err := OpenSQLite(context.Background(), path)
	if !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}
