package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/util"
	"github.com/gruntwork-io/actiontree/internal/wire"
	"github.com/gruntwork-io/actiontree/internal/worker"
	"github.com/gruntwork-io/actiontree/pkg/log"
	"github.com/gruntwork-io/actiontree/report"
)

// scheduler owns the state of one run. Only the goroutine calling run reads or writes it;
// workers communicate through the events channel.
type scheduler struct {
	cfg        *config
	logger     log.Logger
	pool       worker.Pool
	recorder   *report.Recorder
	events     chan worker.Event
	dependents map[*action.Action][]*action.Action
	usage      map[*action.Resource]int
	running    map[int]*action.Action
	echoes     map[*action.Action]io.Writer
	fatalErr   error
	actions    []*action.Action
	errs       []error
	lastJobID  int
	halted     bool
}

func newScheduler(cfg *config, l log.Logger, pool worker.Pool, actions []*action.Action) *scheduler {
	return &scheduler{
		cfg:        cfg,
		logger:     l,
		pool:       pool,
		recorder:   report.NewRecorder(actions),
		events:     make(chan worker.Event),
		dependents: action.DependentsIndex(actions),
		usage:      make(map[*action.Resource]int),
		running:    make(map[int]*action.Action),
		echoes:     make(map[*action.Action]io.Writer),
		actions:    actions,
	}
}

func (s *scheduler) run(ctx context.Context) (*report.Report, error) {
	s.logger.Debugf("Executing %d actions, concurrency %d, keep going %t", len(s.actions), s.cfg.Concurrency, s.cfg.KeepGoing)

	for _, a := range s.actions {
		t := s.cfg.clock.Now()
		a.SetStatus(action.Pending)
		s.recorder.SetPending(a, t)
		s.cfg.hooks.ActionPending(t, a)
	}

	done := ctx.Done()

	for {
		if done != nil && ctx.Err() != nil {
			done = nil

			s.interrupt(ctx.Err())
		}

		if !s.halted {
			s.promote()
			s.dispatch(ctx)
		}

		if len(s.running) == 0 {
			break
		}

		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-done:
		}
	}

	for _, a := range s.actions {
		s.cancel(a)
	}

	rep := s.recorder.Report()

	if s.fatalErr != nil {
		return rep, s.fatalErr
	}

	if len(s.errs) > 0 && s.cfg.FailOnError {
		return rep, &AggregateError{Report: rep, errs: s.errs}
	}

	return rep, nil
}

// promote marks Ready the pending actions whose dependencies are all done.
func (s *scheduler) promote() {
	for _, a := range s.actions {
		if a.Status() != action.Pending || !dependenciesDone(a) {
			continue
		}

		t := s.cfg.clock.Now()
		a.SetStatus(action.Ready)
		s.recorder.SetReady(a, t)
		s.cfg.hooks.ActionReady(t, a)
	}
}

// dispatch hands the admissible ready actions to the pool, in a possible execution order.
func (s *scheduler) dispatch(ctx context.Context) {
	for _, a := range s.actions {
		if s.halted || ctx.Err() != nil {
			return
		}

		if a.Status() != action.Ready || !s.admissible(a) {
			continue
		}

		s.start(ctx, a)
	}
}

// admissible reports whether a can run alongside the running actions. A resource that
// nobody uses admits any quantity, so an action asking for more than the availability
// runs alone instead of never.
func (s *scheduler) admissible(a *action.Action) bool {
	for _, req := range a.Requirements() {
		availability := s.availability(req.Resource)
		if availability == action.Unlimited {
			continue
		}

		if used := s.usage[req.Resource]; used != 0 && used+req.Quantity > availability {
			return false
		}
	}

	return true
}

func (s *scheduler) availability(r *action.Resource) int {
	if r == action.CPU {
		return s.cfg.Concurrency
	}

	return r.Availability()
}

func (s *scheduler) start(ctx context.Context, a *action.Action) {
	s.lastJobID++

	job := &worker.Job{
		ID:           s.lastJobID,
		Label:        a.Label(),
		Executor:     a.Executor(),
		Dependencies: dependencyStatuses(a),
	}

	a.SetStatus(action.Running)
	s.recorder.SetRunning(a)

	if err := s.pool.Prepare(job); err != nil {
		s.fail(a, err)
		return
	}

	for _, req := range a.Requirements() {
		s.usage[req.Resource] += req.Quantity
	}

	s.logger.Tracef("Dispatching %s as job %d", a, job.ID)

	s.running[job.ID] = a
	s.pool.Submit(ctx, job, s.events)
}

func (s *scheduler) handle(ev worker.Event) {
	a, ok := s.running[ev.JobID]
	if !ok {
		s.logger.Debugf("Ignoring event of unknown job %d", ev.JobID)
		return
	}

	t := s.cfg.clock.Now()

	switch ev.Kind {
	case worker.EventStarted:
		s.recorder.SetStarted(a, t)
		s.cfg.hooks.ActionStarted(t, a)
	case worker.EventOutput:
		s.recorder.AppendOutput(a, ev.Output)
		s.cfg.hooks.ActionPrinted(t, a, ev.Output)
		s.echo(a, ev.Output)
	case worker.EventDone:
		delete(s.running, ev.JobID)

		for _, req := range a.Requirements() {
			s.usage[req.Resource] -= req.Quantity
		}

		if ev.Err != nil {
			s.fail(a, ev.Err)
			return
		}

		a.SetStatus(action.Successful)
		s.recorder.SetSuccessful(a, t, ev.Value)
		s.cfg.hooks.ActionSuccessful(t, a)
	}
}

func (s *scheduler) fail(a *action.Action, err error) {
	t := s.cfg.clock.Now()
	a.SetStatus(action.Failed)
	s.recorder.SetFailed(a, t, err)
	s.cfg.hooks.ActionFailed(t, a)

	l := s.logger.WithField(log.FieldKeyAction, a.String()).WithError(err)
	l.Debugf("Action failed")

	if stack := errors.ErrorStack(err); stack != "" {
		l.Tracef("Stack trace:\n%s", stack)
	}

	var serializationErr *wire.SerializationError
	if errors.As(err, &serializationErr) {
		if s.fatalErr == nil {
			s.fatalErr = err
		}

		s.halt()
	} else {
		s.errs = append(s.errs, err)

		if !s.cfg.KeepGoing {
			s.halt()
		}
	}

	s.cancelDependents(a)
}

// cancel marks a Canceled if it has not been dispatched yet, then does the same for its
// dependents that do not accept failed dependencies.
func (s *scheduler) cancel(a *action.Action) {
	if status := a.Status(); status != action.Pending && status != action.Ready {
		return
	}

	t := s.cfg.clock.Now()
	a.SetStatus(action.Canceled)
	s.recorder.SetCanceled(a, t)
	s.cfg.hooks.ActionCanceled(t, a)

	s.cancelDependents(a)
}

func (s *scheduler) cancelDependents(a *action.Action) {
	for _, dependent := range s.dependents[a] {
		if !dependent.AcceptsFailedDependencies() {
			s.cancel(dependent)
		}
	}
}

// interrupt stops dispatching because the context of the run is done.
func (s *scheduler) interrupt(err error) {
	if errors.IsContextCanceled(err) {
		s.logger.Debugf("Execution canceled")
	} else {
		s.logger.Debugf("Execution interrupted: %v", err)
	}

	s.errs = append(s.errs, err)
	s.halt()
}

func (s *scheduler) halt() {
	if !s.halted {
		s.logger.Debugf("Stopping dispatch, waiting for %d running actions", len(s.running))
	}

	s.halted = true
}

func (s *scheduler) echo(a *action.Action, p []byte) {
	if s.cfg.output == nil {
		return
	}

	w, ok := s.echoes[a]
	if !ok {
		w = util.PrefixedWriter(s.cfg.output, fmt.Sprintf("[%s] ", a.Label()))
		s.echoes[a] = w
	}

	if _, err := w.Write(p); err != nil {
		s.logger.Debugf("Failed to echo output of %s: %v", a, err)
	}
}

func dependenciesDone(a *action.Action) bool {
	for _, dep := range a.Dependencies() {
		if !dep.Status().IsTerminal() {
			return false
		}
	}

	return true
}

func dependencyStatuses(a *action.Action) []action.DependencyStatus {
	deps := a.Dependencies()
	statuses := make([]action.DependencyStatus, 0, len(deps))

	for _, dep := range deps {
		statuses = append(statuses, action.DependencyStatus{Label: dep.Label(), Status: dep.Status()})
	}

	return statuses
}
