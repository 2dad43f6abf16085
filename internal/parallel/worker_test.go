package parallel_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/paveg/kwdata/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	assert.Positive(t, parallel.NewWorkerPool(0).Workers())
	assert.Positive(t, parallel.NewWorkerPool(-1).Workers())
	assert.Equal(t, 4, parallel.NewWorkerPool(4).Workers())
}

func TestSequential(t *testing.T) {
	tests := []struct {
		name     string
		pool     *parallel.WorkerPool
		items    int
		expected bool
	}{
		{"nil pool", nil, 10000, true},
		{"single worker", parallel.NewWorkerPool(1), 10000, true},
		{"below threshold", parallel.NewWorkerPool(4), parallel.DefaultThreshold - 1, true},
		{"at threshold", parallel.NewWorkerPool(4), parallel.DefaultThreshold, false},
		{"custom threshold", parallel.NewWorkerPool(4, parallel.WithThreshold(2)), 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pool.Sequential(tt.items))
		})
	}
}

func TestProcessIndexed(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	for _, pool := range []*parallel.WorkerPool{
		parallel.NewWorkerPool(1),
		parallel.NewWorkerPool(8, parallel.WithThreshold(1)),
	} {
		t.Run(fmt.Sprintf("workers=%d", pool.Workers()), func(t *testing.T) {
			results, err := parallel.ProcessIndexed(context.Background(), pool, items, func(i, x int) (int, error) {
				return i + x*x, nil
			})
			require.NoError(t, err)
			require.Len(t, results, len(items))
			for i, r := range results {
				assert.Equal(t, i+i*i, r)
			}
		})
	}
}

func TestProcessIndexedEmpty(t *testing.T) {
	results, err := parallel.ProcessIndexed(context.Background(), parallel.NewWorkerPool(2), []int{}, func(int, int) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessIndexedLowestError(t *testing.T) {
	items := make([]int, 500)
	pool := parallel.NewWorkerPool(8, parallel.WithThreshold(1))

	var calls atomic.Int64
	_, err := parallel.ProcessIndexed(context.Background(), pool, items, func(i, _ int) (int, error) {
		calls.Add(1)
		if i%100 == 37 {
			return 0, fmt.Errorf("item %d failed", i)
		}
		return i, nil
	})
	require.Error(t, err)
	assert.Equal(t, "item 37 failed", err.Error())
	assert.Equal(t, int64(len(items)), calls.Load())
}

func TestProcessIndexedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, pool := range []*parallel.WorkerPool{
		parallel.NewWorkerPool(1),
		parallel.NewWorkerPool(4, parallel.WithThreshold(1)),
	} {
		_, err := parallel.ProcessIndexed(ctx, pool, []int{1, 2, 3}, func(_, x int) (int, error) {
			return x, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	}
}
