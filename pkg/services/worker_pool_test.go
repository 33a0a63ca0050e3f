package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunPoolProcessesAllItems(t *testing.T) {
	items := make([]workItem[int], 10)
	for i := range items {
		i := i
		items[i] = workItem[int]{
			ID: string(rune('a' + i)),
			Execute: func(ctx context.Context) (int, error) {
				return i * 2, nil
			},
		}
	}

	results := runPool(context.Background(), 3, zap.NewNop(), items)
	assert.Len(t, results, 10)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestRunPoolContinuesPastFailures(t *testing.T) {
	items := []workItem[int]{
		{ID: "ok", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "bad", Execute: func(ctx context.Context) (int, error) { return 0, errors.New("boom") }},
		{ID: "ok2", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
	}

	results := runPool(context.Background(), 1, zap.NewNop(), items)
	assert.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.Equal(t, "bad", r.ID)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRunPoolBoundsConcurrency(t *testing.T) {
	var active, peak int64
	items := make([]workItem[struct{}], 20)
	for i := range items {
		items[i] = workItem[struct{}]{
			ID: "item",
			Execute: func(ctx context.Context) (struct{}, error) {
				n := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				atomic.AddInt64(&active, -1)
				return struct{}{}, nil
			},
		}
	}

	runPool(context.Background(), 4, zap.NewNop(), items)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(4))
}

func TestRunPoolEmptyInput(t *testing.T) {
	assert.Nil(t, runPool[int](context.Background(), 4, zap.NewNop(), nil))
}
