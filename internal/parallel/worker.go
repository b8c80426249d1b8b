// Package parallel runs independent jobs on a bounded pool of goroutines.
//
// Jobs are fanned out over a channel and their results fanned back in by
// index, so callers get results in input order. The first failing job cancels
// the context handed to the others.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool bounds how many jobs run at once.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a pool of numWorkers goroutines. A non-positive count
// uses runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{numWorkers: numWorkers}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// ProcessIndexed runs worker over items and returns the results in input
// order. It returns the error of the first job to fail; items not yet started
// when that happens are skipped and their results left zero.
func ProcessIndexed[T, R any](
	ctx context.Context,
	wp *WorkerPool,
	items []T,
	worker func(ctx context.Context, index int, item T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	itemCh := make(chan indexedItem[T])
	resultCh := make(chan indexedResult[R], len(items))

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	workers := min(wp.numWorkers, len(items))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				if ctx.Err() != nil {
					continue
				}
				result, err := worker(ctx, item.index, item.value)
				if err != nil {
					// recorded before cancel so jobs failing with the
					// cancellation cannot take its place
					once.Do(func() { firstErr = err })
					cancel()
				}
				resultCh <- indexedResult[R]{index: item.index, result: result}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for i, item := range items {
			select {
			case <-ctx.Done():
				return
			case itemCh <- indexedItem[T]{index: i, value: item}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]R, len(items))
	for r := range resultCh {
		results[r.index] = r.result
	}
	if firstErr == nil {
		// without a failed job only the parent can have canceled ctx
		firstErr = ctx.Err()
	}
	return results, firstErr
}

// indexedItem holds an item with its index
type indexedItem[T any] struct {
	index int
	value T
}

// indexedResult holds a result with its index
type indexedResult[R any] struct {
	index  int
	result R
}
