package worker_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/wire"
	"github.com/gruntwork-io/actiontree/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	Text string
}

func (e *echo) Execute(ctx context.Context) (any, error) {
	_, _ = io.WriteString(action.Output(ctx), e.Text)
	fmt.Println("from stdout")

	return len(action.DependencyStatuses(ctx)), nil
}

type failing struct {
	Message string
}

func (f *failing) Execute(context.Context) (any, error) {
	return nil, errors.New(f.Message)
}

type returnsFunc struct{}

func (*returnsFunc) Execute(context.Context) (any, error) {
	return func() {}, nil
}

// collect reads events until the EventDone of every job.
func collect(t *testing.T, events <-chan worker.Event, jobs int) map[int][]worker.Event {
	t.Helper()

	byJob := make(map[int][]worker.Event)

	for done := 0; done < jobs; {
		select {
		case ev := <-events:
			byJob[ev.JobID] = append(byJob[ev.JobID], ev)

			if ev.Kind == worker.EventDone {
				done++
			}
		case <-time.After(time.Minute):
			require.FailNow(t, "timed out waiting for worker events")
		}
	}

	return byJob
}

func output(evs []worker.Event) string {
	var out string

	for _, ev := range evs {
		if ev.Kind == worker.EventOutput {
			out += string(ev.Output)
		}
	}

	return out
}

func TestThreadPoolEvents(t *testing.T) {
	t.Parallel()

	pool := worker.NewThreadPool(2)
	events := make(chan worker.Event)

	jobs := []*worker.Job{
		{ID: 0, Label: "print", Executor: action.ExecutorFunc(func(ctx context.Context) (any, error) {
			_, _ = io.WriteString(action.Output(ctx), "hello ")
			_, _ = io.WriteString(action.Output(ctx), action.Label(ctx))

			return 42, nil
		})},
		{ID: 1, Label: "fail", Executor: &failing{Message: "nope"}},
		{ID: 2, Label: "panic", Executor: action.ExecutorFunc(func(context.Context) (any, error) {
			panic("exploded")
		})},
	}

	for _, job := range jobs {
		require.NoError(t, pool.Prepare(job))
		pool.Submit(context.Background(), job, events)
	}

	byJob := collect(t, events, len(jobs))
	require.NoError(t, pool.Close())

	printed := byJob[0]
	assert.Equal(t, worker.EventStarted, printed[0].Kind)
	assert.Equal(t, worker.EventDone, printed[len(printed)-1].Kind)
	assert.Equal(t, "hello print", output(printed))
	assert.Equal(t, 42, printed[len(printed)-1].Value)
	require.NoError(t, printed[len(printed)-1].Err)

	failed := byJob[1]
	require.EqualError(t, failed[len(failed)-1].Err, "nope")

	panicked := byJob[2]
	require.Error(t, panicked[len(panicked)-1].Err)
	assert.Contains(t, panicked[len(panicked)-1].Err.Error(), "exploded")
}

func TestThreadPoolLimitsConcurrency(t *testing.T) {
	t.Parallel()

	const maxWorkers = 2

	pool := worker.NewThreadPool(maxWorkers)
	events := make(chan worker.Event, 64)

	var running, peak atomic.Int32

	executor := action.ExecutorFunc(func(context.Context) (any, error) {
		n := running.Add(1)
		defer running.Add(-1)

		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)

		return nil, nil
	})

	for i := range 6 {
		pool.Submit(context.Background(), &worker.Job{ID: i, Executor: executor}, events)
	}

	collect(t, events, 6)
	require.NoError(t, pool.Close())

	assert.LessOrEqual(t, peak.Load(), int32(maxWorkers))
}

func TestProcessPoolRejectsUnserializableExecutor(t *testing.T) {
	t.Parallel()

	pool := worker.NewProcessPool(1)
	defer pool.Close() //nolint:errcheck

	err := pool.Prepare(&worker.Job{Label: "func", Executor: action.ExecutorFunc(func(context.Context) (any, error) {
		return nil, nil
	})})

	var serErr *wire.SerializationError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, wire.SubjectExecutor, serErr.Subject)
}

func TestProcessPool(t *testing.T) {
	t.Parallel()

	pool := worker.NewProcessPool(2)
	events := make(chan worker.Event)

	jobs := []*worker.Job{
		{ID: 0, Label: "echo", Executor: &echo{Text: "captured\n"}, Dependencies: []action.DependencyStatus{{Label: "dep", Status: action.Successful}}},
		{ID: 1, Label: "fail", Executor: &failing{Message: "remote failure"}},
		{ID: 2, Label: "func", Executor: &returnsFunc{}},
	}

	for _, job := range jobs {
		require.NoError(t, pool.Prepare(job))
		pool.Submit(context.Background(), job, events)
	}

	byJob := collect(t, events, len(jobs))
	require.NoError(t, pool.Close())

	echoed := byJob[0]
	assert.Equal(t, worker.EventStarted, echoed[0].Kind)
	assert.Equal(t, "captured\nfrom stdout\n", output(echoed))

	last := echoed[len(echoed)-1]
	require.NoError(t, last.Err)
	assert.EqualValues(t, 1, last.Value)

	failed := byJob[1]
	require.Error(t, failed[len(failed)-1].Err)
	assert.Equal(t, "remote failure", failed[len(failed)-1].Err.Error())

	funcResult := byJob[2]

	var serErr *wire.SerializationError
	require.True(t, errors.As(funcResult[len(funcResult)-1].Err, &serErr))
	assert.Equal(t, wire.SubjectReturnValue, serErr.Subject)
}

func TestProcessPoolWithCommand(t *testing.T) {
	t.Parallel()

	var started atomic.Int32

	pool := worker.NewProcessPool(1, worker.WithCommand(func() (*exec.Cmd, error) {
		started.Add(1)

		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}

		return exec.Command(exe, "-test.run=^$"), nil
	}))
	events := make(chan worker.Event)

	for id := range 2 {
		job := &worker.Job{ID: id, Label: fmt.Sprintf("echo %d", id), Executor: &echo{Text: "hi\n"}}
		require.NoError(t, pool.Prepare(job))
		pool.Submit(context.Background(), job, events)
	}

	byJob := collect(t, events, 2)
	require.NoError(t, pool.Close())

	for id := range 2 {
		assert.Equal(t, "hi\nfrom stdout\n", output(byJob[id]))
	}

	assert.EqualValues(t, 1, started.Load())
}
