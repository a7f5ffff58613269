package runner_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/runner"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// fakeClock ticks one second every time it is read.
type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)

	return c.now
}

// recordingHooks records every transition as "<event> <label>".
type recordingHooks struct {
	events []string
}

func (h *recordingHooks) record(event string, a *action.Action) {
	h.events = append(h.events, event+" "+a.Label())
}

func (h *recordingHooks) ActionPending(_ time.Time, a *action.Action) { h.record("pending", a) }
func (h *recordingHooks) ActionReady(_ time.Time, a *action.Action)   { h.record("ready", a) }
func (h *recordingHooks) ActionStarted(_ time.Time, a *action.Action) { h.record("started", a) }
func (h *recordingHooks) ActionPrinted(_ time.Time, a *action.Action, _ []byte) {
	h.record("printed", a)
}
func (h *recordingHooks) ActionSuccessful(_ time.Time, a *action.Action) { h.record("successful", a) }
func (h *recordingHooks) ActionFailed(_ time.Time, a *action.Action)     { h.record("failed", a) }
func (h *recordingHooks) ActionCanceled(_ time.Time, a *action.Action)   { h.record("canceled", a) }

// failureHooks only observes failures.
type failureHooks struct {
	runner.NopHooks
	labels []string
}

func (h *failureHooks) ActionFailed(_ time.Time, a *action.Action) {
	h.labels = append(h.labels, a.Label())
}

// tracker records which actions run at the same time.
type tracker struct {
	running  map[string]bool
	overlaps map[string][]string
	mu       sync.Mutex
	max      int
}

func newTracker() *tracker {
	return &tracker{running: make(map[string]bool), overlaps: make(map[string][]string)}
}

func (tr *tracker) executor(label string) action.Executor {
	return action.ExecutorFunc(func(context.Context) (any, error) {
		tr.mu.Lock()
		for other := range tr.running {
			tr.overlaps[label] = append(tr.overlaps[label], other)
			tr.overlaps[other] = append(tr.overlaps[other], label)
		}

		tr.running[label] = true
		tr.max = max(tr.max, len(tr.running))
		tr.mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		tr.mu.Lock()
		delete(tr.running, label)
		tr.mu.Unlock()

		return nil, nil
	})
}

func succeed(val any) action.Executor {
	return action.ExecutorFunc(func(context.Context) (any, error) {
		return val, nil
	})
}

func fail(message string) action.Executor {
	return action.ExecutorFunc(func(context.Context) (any, error) {
		return nil, errors.New(message)
	})
}

func printer(text string) action.Executor {
	return action.ExecutorFunc(func(ctx context.Context) (any, error) {
		_, err := io.WriteString(action.Output(ctx), text)
		return nil, err
	})
}

func newAction(t *testing.T, label string, executor action.Executor, deps ...*action.Action) *action.Action {
	t.Helper()

	a := action.New(label, executor)
	for _, dep := range deps {
		require.NoError(t, a.AddDependency(dep))
	}

	return a
}

// Executors crossing the process boundary.

type greeting struct {
	Text string
	Deps int
}

type greeter struct {
	Name string
}

func (g *greeter) Execute(ctx context.Context) (any, error) {
	fmt.Printf("hello %s\n", g.Name)

	return greeting{Text: "hello " + g.Name, Deps: len(action.DependencyStatuses(ctx))}, nil
}

type shouter struct {
	Text string
}

func (s *shouter) Execute(ctx context.Context) (any, error) {
	_, err := io.WriteString(action.Output(ctx), s.Text)
	return nil, err
}

type refuser struct {
	Message string
}

func (r *refuser) Execute(context.Context) (any, error) {
	return nil, errors.New(r.Message)
}

type returnsChannel struct{}

func (*returnsChannel) Execute(context.Context) (any, error) {
	return make(chan int), nil
}

type customFailure struct {
	Code int
}

func (err *customFailure) Error() string {
	return fmt.Sprintf("failed with code %d", err.Code)
}

type failsWithCustomError struct {
	Code int
}

func (f *failsWithCustomError) Execute(context.Context) (any, error) {
	return nil, &customFailure{Code: f.Code}
}

type unregistered struct{}

func (*unregistered) Execute(context.Context) (any, error) {
	return nil, nil
}
