// Package rescore runs the forest searches over many sentences in parallel
// and optionally persists the results.
package rescore

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/reference"
	"github.com/cognicore/forestbleu/pkg/forestbleu/search"
	"github.com/cognicore/forestbleu/pkg/forestbleu/store"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Mode selects the search run for each job.
type Mode int

const (
	// ModeViterbi finds the best whole-sentence derivation.
	ModeViterbi Mode = iota
	// ModeSpans finds the best derivation for every span.
	ModeSpans
)

// Job is one sentence's forest.
type Job struct {
	SentenceID int
	Graph      *hypergraph.Graph
}

// Result is the outcome of one job. Exactly one of Best and Spans is set.
type Result struct {
	SentenceID int
	Best       *search.Hypothesis
	Spans      *search.SpanResult
}

// Runner shares a frozen vocabulary and read-only references across workers.
type Runner struct {
	Vocab      *vocab.Vocab
	References *reference.Set
	Weights    hypergraph.FeatureVector
	Options    search.Options
	Mode       Mode
	Workers    int
	// Store, when set, receives every result under RunID.
	Store store.Store
	RunID string
}

// Run processes jobs with at most Workers concurrent searches. Results are
// returned in job order. The first failing job cancels the rest.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if !r.Vocab.Frozen() {
		return nil, fmt.Errorf("rescore: vocabulary must be frozen before scoring: %w", internalerr.ErrInvalidInput)
	}
	if r.Store != nil && r.RunID == "" {
		return nil, fmt.Errorf("rescore: store without run id: %w", internalerr.ErrInvalidInput)
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.runOne(ctx, job)
			if err != nil {
				return fmt.Errorf("sentence %d: %w", job.SentenceID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, job Job) (Result, error) {
	res := Result{SentenceID: job.SentenceID}
	switch r.Mode {
	case ModeViterbi:
		best, err := search.Viterbi(job.Graph, r.Weights, r.References, job.SentenceID, r.Options)
		if err != nil {
			return res, err
		}
		res.Best = best
		if r.Store != nil {
			rootSpan := job.Graph.Vertex(job.Graph.Root()).Span
			rec := store.NewRecord(job.SentenceID, rootSpan, best, r.Vocab)
			if err := r.Store.SaveHypothesis(ctx, r.RunID, rec); err != nil {
				return res, fmt.Errorf("save hypothesis: %w", err)
			}
		}
	case ModeSpans:
		spans, err := search.SpanViterbi(job.Graph, r.Weights, r.References, job.SentenceID, r.Options)
		if err != nil {
			return res, err
		}
		res.Spans = spans
		if r.Store != nil {
			for _, span := range spans.Spans() {
				rec := store.NewRecord(job.SentenceID, span, spans.Hypotheses[span], r.Vocab)
				if err := r.Store.SaveHypothesis(ctx, r.RunID, rec); err != nil {
					return res, fmt.Errorf("save hypothesis %v: %w", span, err)
				}
			}
		}
	default:
		return res, fmt.Errorf("mode %d: %w", r.Mode, internalerr.ErrInvalidInput)
	}
	if glog.V(2) {
		glog.Infof("sentence %d done", job.SentenceID)
	}
	return res, nil
}
