package parallel_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paveg/tripclean/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name     string
		workers  int
		expected int
	}{
		{"explicit", 4, 4},
		{"zero uses cpu count", 0, runtime.NumCPU()},
		{"negative uses cpu count", -1, runtime.NumCPU()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parallel.NewWorkerPool(tt.workers).Workers())
		})
	}
}

func TestProcessIndexed(t *testing.T) {
	pool := parallel.NewWorkerPool(2)

	input := []string{"a", "b", "c", "d"}
	results, err := parallel.ProcessIndexed(context.Background(), pool, input,
		func(_ context.Context, index int, value string) (string, error) {
			return value + string(rune('0'+index)), nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "b1", "c2", "d3"}, results)
}

func TestProcessIndexedEmpty(t *testing.T) {
	results, err := parallel.ProcessIndexed(context.Background(), parallel.NewWorkerPool(2), []string{},
		func(context.Context, int, string) (string, error) { return "", nil })

	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestProcessIndexedError(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int64

	input := make([]int, 50)
	for i := range input {
		input[i] = i
	}
	_, err := parallel.ProcessIndexed(context.Background(), parallel.NewWorkerPool(1), input,
		func(_ context.Context, i int, _ int) (int, error) {
			ran.Add(1)
			if i == 3 {
				return 0, boom
			}
			return i, nil
		})

	require.ErrorIs(t, err, boom)
	assert.Less(t, ran.Load(), int64(len(input)), "jobs after the failure are skipped")
}

func TestProcessIndexedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parallel.ProcessIndexed(ctx, parallel.NewWorkerPool(2), []int{1, 2, 3},
		func(context.Context, int, int) (int, error) { return 0, nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessIndexedConcurrency(t *testing.T) {
	pool := parallel.NewWorkerPool(4)

	var current, peak atomic.Int64
	input := make([]int, 20)
	_, err := parallel.ProcessIndexed(context.Background(), pool, input,
		func(context.Context, int, int) (int, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return 0, nil
		})

	require.NoError(t, err)
	assert.Greater(t, peak.Load(), int64(1))
	assert.LessOrEqual(t, peak.Load(), int64(4))
}
