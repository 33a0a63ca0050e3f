package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// workItem is a unit of work processed by runPool.
type workItem[T any] struct {
	ID      string // for logging/tracking
	Execute func(ctx context.Context) (T, error)
}

// workResult pairs a work item's ID with its outcome.
type workResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// runPool executes all items with bounded parallelism, returning results in
// completion order. It keeps going when individual items fail; a sync run
// must process every file it can, not stop at the first bad one.
func runPool[T any](ctx context.Context, maxConcurrent int, logger *zap.Logger, items []workItem[T]) []workResult[T] {
	if len(items) == 0 {
		return nil
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	resultsChan := make(chan workResult[T], len(items))
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item workItem[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				var zero T
				resultsChan <- workResult[T]{ID: item.ID, Result: zero, Err: ctx.Err()}
				return
			}

			result, err := item.Execute(ctx)
			if err != nil {
				logger.Debug("work item failed", zap.String("id", item.ID), zap.Error(err))
			}
			resultsChan <- workResult[T]{ID: item.ID, Result: result, Err: err}
		}(item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]workResult[T], 0, len(items))
	for r := range resultsChan {
		results = append(results, r)
	}
	return results
}
