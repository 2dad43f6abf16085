// Package parallel runs independent per-item work on a bounded set of
// goroutines. Results keep the order of their inputs and the reported error
// is always the one of the lowest failing index, so a parallel run fails the
// same way a sequential one would.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultThreshold is the item count below which work runs sequentially
const DefaultThreshold = 256

// WorkerPool bounds how many items are processed at once
type WorkerPool struct {
	numWorkers int
	threshold  int
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithThreshold sets the item count from which work is spread over workers
func WithThreshold(n int) Option {
	return func(wp *WorkerPool) { wp.threshold = n }
}

// NewWorkerPool creates a pool of numWorkers goroutines, one per CPU when
// numWorkers is not positive.
func NewWorkerPool(numWorkers int, opts ...Option) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	wp := &WorkerPool{numWorkers: numWorkers, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

// Workers returns the number of goroutines used for large inputs
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// Sequential reports whether n items are processed on the calling goroutine
func (wp *WorkerPool) Sequential(n int) bool {
	return wp == nil || wp.numWorkers <= 1 || n < wp.threshold
}

// ProcessIndexed applies worker to every item and returns the results in
// input order. Every item is processed even after a failure.
func ProcessIndexed[T, R any](ctx context.Context, wp *WorkerPool, items []T, worker func(int, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	results := make([]R, len(items))

	if wp.Sequential(len(items)) {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := worker(i, item)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	errs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wp.numWorkers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = worker(i, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
