// Package worker runs action executors in isolated execution contexts and reports
// their progress as events.
//
// Two pools are provided: ThreadPool runs executors in goroutines of the current
// process, and ProcessPool runs them in pooled copies of the current binary
// speaking go-plugin net/rpc. Every job produces an optional EventStarted, any
// number of EventOutput and exactly one final EventDone, in that order.
package worker

import (
	"context"
	"io"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
)

// EventKind tells what happened to a job.
type EventKind int

const (
	// EventStarted is sent when the executor begins to run.
	EventStarted EventKind = iota
	// EventOutput carries a chunk of output produced by the executor.
	EventOutput
	// EventDone is the last event of a job and carries its outcome.
	EventDone
)

// Event reports the progress of a job to the scheduler.
type Event struct {
	Value  any
	Err    error
	Output []byte
	JobID  int
	Kind   EventKind
}

// Job is an action handed to a pool.
type Job struct {
	Executor     action.Executor
	Label        string
	Dependencies []action.DependencyStatus
	payload      []byte
	ID           int
}

// Pool runs jobs and reports their events.
type Pool interface {
	// Prepare validates that the job can be run by the pool. It is called before Submit.
	Prepare(job *Job) error

	// Submit starts the job asynchronously. Events are sent to events until the EventDone one.
	Submit(ctx context.Context, job *Job, events chan<- Event)

	// Close waits for submitted jobs and releases the pool resources.
	Close() error
}

// runExecutor runs the executor with its context values, turning panics into errors.
func runExecutor(ctx context.Context, label string, executor action.Executor, deps []action.DependencyStatus, out io.Writer) (val any, err error) {
	defer errors.Recover(func(cause error) {
		val = nil
		err = errors.Errorf("action %q panicked: %w", label, cause)
	})

	ctx = action.ContextWithLabel(ctx, label)
	ctx = action.ContextWithOutput(ctx, out)
	ctx = action.ContextWithDependencyStatuses(ctx, deps)

	return executor.Execute(ctx)
}
