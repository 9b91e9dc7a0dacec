// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs batches of independent tasks with a soft limit on parallelism,
// returning the first error.
package workerspool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool configures the parallelism used to run batches of tasks. A Pool can be shared
// by concurrent callers of Run: each call gets its own group of goroutines.
type Pool struct {
	// maxParallelism is the limit of tasks running at the same time.
	// 0 disables parallelism (tasks run inline), and -1 makes it unlimited.
	maxParallelism int
}

// New returns a new Pool with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	return &Pool{maxParallelism: runtime.NumCPU()}
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism returns the limit of tasks running at the same time.
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism, and returns the Pool itself.
//
// You should only change the parallelism when no Run is in progress.
func (w *Pool) SetMaxParallelism(maxParallelism int) *Pool {
	w.maxParallelism = maxParallelism
	return w
}

// Run calls task for every index in [0, numTasks), and waits for all of them to finish.
//
// It returns the first error returned by a task. Once a task fails, the context passed to the
// other tasks is cancelled and no new tasks are started. If ctx is cancelled before all tasks
// are started, ctx.Err() is returned. A cancellation after the last task started is left for the
// tasks to handle, and if all of them succeed Run returns nil.
//
// If parallelism is disabled, tasks are run inline, in order.
func (w *Pool) Run(ctx context.Context, numTasks int, task func(ctx context.Context, index int) error) error {
	if !w.IsEnabled() {
		for ii := range numTasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := task(ctx, ii); err != nil {
				return err
			}
		}
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	if !w.IsUnlimited() {
		g.SetLimit(w.maxParallelism)
	}
	var unstarted bool
	for ii := range numTasks {
		if gCtx.Err() != nil {
			unstarted = true
			break
		}
		g.Go(func() error {
			return task(gCtx, ii)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if unstarted {
		// Cancelled by the caller.
		return ctx.Err()
	}
	return nil
}
