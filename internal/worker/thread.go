package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/util"
)

// ThreadPool runs jobs in goroutines, limiting the number of jobs running simultaneously.
type ThreadPool struct {
	semaphore  chan struct{}
	wg         sync.WaitGroup
	isStopping atomic.Bool
}

// NewThreadPool creates a pool running at most maxWorkers jobs at once. A non-positive value means no limit.
func NewThreadPool(maxWorkers int) *ThreadPool {
	wp := &ThreadPool{}

	if maxWorkers > 0 {
		wp.semaphore = make(chan struct{}, maxWorkers)
	}

	return wp
}

// Prepare implements Pool. Jobs run in the current process so nothing needs to be checked.
func (wp *ThreadPool) Prepare(*Job) error {
	return nil
}

// Submit implements Pool.
func (wp *ThreadPool) Submit(ctx context.Context, job *Job, events chan<- Event) {
	wp.wg.Add(1)

	go func() {
		defer wp.wg.Done()

		if wp.isStopping.Load() {
			events <- Event{JobID: job.ID, Kind: EventDone, Err: errors.Errorf("action %q: pool is stopping", job.Label)}
			return
		}

		if wp.semaphore != nil {
			wp.semaphore <- struct{}{}

			defer func() { <-wp.semaphore }()
		}

		events <- Event{JobID: job.ID, Kind: EventStarted}

		out := util.NewChunkWriter(func(p []byte) {
			events <- Event{JobID: job.ID, Kind: EventOutput, Output: p}
		})

		val, err := runExecutor(ctx, job.Label, job.Executor, job.Dependencies, out)

		// Writes from goroutines the executor left behind are dropped from here on.
		_ = out.Close()

		events <- Event{JobID: job.ID, Kind: EventDone, Value: val, Err: err}
	}()
}

// Close implements Pool. It waits for all submitted jobs to complete.
func (wp *ThreadPool) Close() error {
	wp.isStopping.Store(true)
	wp.wg.Wait()

	return nil
}
