// Package sync drives the fetch-normalize-persist pipeline across the
// cartesian product of instruments and granularities.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/candlesync/market"
	"github.com/rustyeddy/candlesync/oanda"
	"github.com/rustyeddy/candlesync/pkg/id"
)

// Source yields the full remaining candle history for one job, oldest first.
// On a job-level failure it returns the candles gathered before the failure
// alongside the error.
type Source interface {
	FetchHistory(ctx context.Context, instrument string, g market.Granularity, resume time.Time) ([]market.Candle, error)
}

// Storage merges one job's candles transactionally and reports resume
// cursors.
type Storage interface {
	LastTime(ctx context.Context, instrument string, g market.Granularity) (time.Time, bool, error)
	UpsertCandles(ctx context.Context, candles []market.Candle) (int, error)
}

// Runner executes sync jobs against a Source and a Storage.
//
// Jobs are independent: one job's failure is collected, not propagated. The
// single exception is an authentication failure, which is fatal to the whole
// run because the credential is shared — jobs not yet started are canceled
// rather than attempted. In-flight jobs are left to finish so their
// transactions are never interrupted.
type Runner struct {
	Source Source
	Store  Storage

	// Workers bounds job parallelism. Zero or one runs jobs sequentially.
	Workers int
	Logger  *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run executes every job and aggregates the outcomes.
func (r *Runner) Run(ctx context.Context, jobs []Job) Summary {
	summary := Summary{
		RunID:   id.New(),
		Started: time.Now().UTC(),
		Results: make([]Result, len(jobs)),
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range jobs {
		i := i
		g.Go(func() error {
			// Cooperative cancellation point: a fatal credential failure in
			// an earlier job stops jobs that have not started yet.
			if gctx.Err() != nil {
				summary.Results[i] = Result{Job: jobs[i], Status: Canceled}
				return nil
			}

			res := r.runJob(ctx, jobs[i])
			summary.Results[i] = res

			r.logger().Info("job finished",
				"job", jobs[i].String(),
				"status", res.Status.String(),
				"written", res.Written,
				"error", res.Err)

			if errors.Is(res.Err, oanda.ErrUnauthorized) {
				return res.Err
			}
			return nil
		})
	}

	// The only error a worker surfaces is the fatal auth one, and it is
	// already recorded in its job's result.
	_ = g.Wait()

	summary.Finished = time.Now().UTC()
	return summary
}

// runJob walks one job through fetch and persist.
func (r *Runner) runJob(ctx context.Context, job Job) Result {
	res := Result{Job: job}

	resume, _, err := r.Store.LastTime(ctx, job.Instrument, job.Granularity)
	if err != nil {
		res.Status = Failed
		res.Err = err
		return res
	}

	candles, fetchErr := r.Source.FetchHistory(ctx, job.Instrument, job.Granularity, resume)
	if fetchErr != nil && errors.Is(fetchErr, oanda.ErrUnauthorized) {
		res.Status = Failed
		res.Err = fetchErr
		return res
	}

	// Partial data gathered before a retryable-ceiling failure is still
	// persisted.
	written, persistErr := r.Store.UpsertCandles(ctx, candles)
	res.Written = written

	switch {
	case persistErr != nil:
		res.Status = Failed
		res.Err = persistErr
	case fetchErr != nil && written > 0:
		res.Status = PartiallyFailed
		res.Err = fetchErr
	case fetchErr != nil:
		res.Status = Failed
		res.Err = fetchErr
	default:
		res.Status = Succeeded
	}
	return res
}
