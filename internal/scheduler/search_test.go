package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorseFirstKeepsLowestCosts(t *testing.T) {
	q := &worseFirst{}
	for i, cost := range []int{9, 3, 7, 1, 8, 3, 2} {
		q.offer(&searchEntry{cost: cost, seed: int64(i)}, 3)
	}

	require.Equal(t, 3, q.Len())
	costs := []int{}
	for q.Len() > 0 {
		costs = append(costs, heap.Pop(q).(*searchEntry).cost)
	}
	// 弹出顺序从差到好
	assert.Equal(t, []int{3, 2, 1}, costs)
}

func TestSearch(t *testing.T) {
	workers := randomWorkers(31, 12)
	p := DefaultParameters(90, 2)
	s, err := New(p, workers)
	require.NoError(t, err)

	result, err := s.Search(context.Background(), SearchOptions{Iterations: 60, TopK: 5, Parallelism: 4, BaseSeed: 100})
	require.NoError(t, err)

	assert.Equal(t, 60, result.Iterations)
	require.Len(t, result.Top, 5)
	assert.Equal(t, result.Top[0].Histogram, result.BestHistogram)

	for i, c := range result.Top {
		assertScheduleInvariants(t, workers, p, c.Schedule)
		require.NotNil(t, c.Seed)
		assert.GreaterOrEqual(t, *c.Seed, int64(100))
		assert.Less(t, *c.Seed, int64(160))
		if i > 0 {
			assert.LessOrEqual(t, result.Top[i-1].Cost, c.Cost)
		}
	}
}

func TestSearchIsIndependentOfParallelism(t *testing.T) {
	workers := randomWorkers(17, 8)
	s, err := New(DefaultParameters(60, 1), workers)
	require.NoError(t, err)

	opts := SearchOptions{Iterations: 30, TopK: 4, Parallelism: 1}
	serial, err := s.Search(context.Background(), opts)
	require.NoError(t, err)

	opts.Parallelism = 6
	parallel, err := s.Search(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, parallel.Top, len(serial.Top))
	for i := range serial.Top {
		assert.Equal(t, *serial.Top[i].Seed, *parallel.Top[i].Seed)
		assert.Equal(t, serial.Top[i].Cost, parallel.Top[i].Cost)
		assert.Equal(t, serial.Top[i].Schedule, parallel.Top[i].Schedule)
	}
}

func TestSearchCancelled(t *testing.T) {
	s, err := New(DefaultParameters(60, 1), randomWorkers(2, 5))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Search(ctx, SearchOptions{Iterations: 1000, TopK: 3})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSearchTimeBudgetReturnsPartialResult(t *testing.T) {
	s, err := New(DefaultParameters(60, 1), randomWorkers(4, 5))
	require.NoError(t, err)

	result, err := s.Search(context.Background(), SearchOptions{Iterations: 1_000_000, TopK: 3, TimeBudget: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Less(t, result.Iterations, 1_000_000)
	assert.LessOrEqual(t, len(result.Top), 3)
}

func TestSearchRejectsInvalidOptions(t *testing.T) {
	s, err := New(DefaultParameters(60, 1), nil)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), SearchOptions{Iterations: 0, TopK: 1})
	assert.Error(t, err)
	_, err = s.Search(context.Background(), SearchOptions{Iterations: 1, TopK: 0})
	assert.Error(t, err)
}
