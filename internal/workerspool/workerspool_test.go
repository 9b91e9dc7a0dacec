// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Run(t *testing.T) {
	pool := New()
	require.True(t, pool.IsEnabled())
	require.Equal(t, runtime.NumCPU(), pool.MaxParallelism())

	// Limited parallelism.
	pool.SetMaxParallelism(3)
	var running, maxRunning, count atomic.Int32
	err := pool.Run(context.Background(), 50, func(_ context.Context, _ int) error {
		current := running.Add(1)
		for {
			previous := maxRunning.Load()
			if current <= previous || maxRunning.CompareAndSwap(previous, current) {
				break
			}
		}
		runtime.Gosched()
		count.Add(1)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(50), count.Load())
	assert.LessOrEqual(t, maxRunning.Load(), int32(3))

	// No parallelism: inline and in order.
	pool.SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	var order []int
	require.NoError(t, pool.Run(context.Background(), 5, func(_ context.Context, index int) error {
		order = append(order, index)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	// Unlimited.
	pool.SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	count.Store(0)
	require.NoError(t, pool.Run(context.Background(), 20, func(_ context.Context, _ int) error {
		count.Add(1)
		return nil
	}))
	assert.Equal(t, int32(20), count.Load())
}

func TestPool_RunErrors(t *testing.T) {
	for _, parallelism := range []int{0, 1, 4, -1} {
		pool := New().SetMaxParallelism(parallelism)
		wantErr := errors.New("task #7 failed")
		err := pool.Run(context.Background(), 20, func(_ context.Context, index int) error {
			if index == 7 {
				return wantErr
			}
			return nil
		})
		require.ErrorIsf(t, err, wantErr, "parallelism=%d", parallelism)
	}
}

func TestPool_RunCancelled(t *testing.T) {
	for _, parallelism := range []int{0, 2} {
		pool := New().SetMaxParallelism(parallelism)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var count atomic.Int32
		err := pool.Run(ctx, 10, func(_ context.Context, _ int) error {
			count.Add(1)
			return nil
		})
		require.ErrorIsf(t, err, context.Canceled, "parallelism=%d", parallelism)
		assert.Zero(t, count.Load())
	}
}

func TestPool_RunCancelledAfterLastTask(t *testing.T) {
	for _, parallelism := range []int{0, 1, 2, -1} {
		pool := New().SetMaxParallelism(parallelism)
		ctx, cancel := context.WithCancel(context.Background())
		var count atomic.Int32
		err := pool.Run(ctx, 10, func(_ context.Context, index int) error {
			count.Add(1)
			if index == 9 {
				cancel()
			}
			return nil
		})
		require.NoErrorf(t, err, "parallelism=%d", parallelism)
		assert.Equal(t, int32(10), count.Load())
		cancel()
	}
}
