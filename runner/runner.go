// Package runner executes a graph of actions: every action runs once all its dependencies
// are done, as many at a time as the concurrency and the resources of the actions allow.
package runner

import (
	"context"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/worker"
	"github.com/gruntwork-io/actiontree/options"
	"github.com/gruntwork-io/actiontree/pkg/log"
	"github.com/gruntwork-io/actiontree/report"
	"github.com/gruntwork-io/actiontree/telemetry"
)

const (
	appName    = "actiontree"
	modulePath = "github.com/gruntwork-io/actiontree"
)

// Execute runs root and everything it depends on, and returns the report of the run.
//
// Once the run has started the report is always returned. The error is a *SerializationError if an executor, a return value
// or an error could not cross the boundary of a worker process, an *AggregateError of the runtime
// errors if FailOnError is set, and nil otherwise.
func Execute(ctx context.Context, root *action.Action, opts ...Option) (*report.Report, error) {
	if root == nil {
		return nil, errors.New("runner: nil root action")
	}

	cfg := newConfig(opts...)
	actions := action.Closure(root)

	l := cfg.Logger
	if l == nil {
		l = log.LoggerFromContext(ctx)
	}

	if l.Level() != cfg.LogLevel {
		l = l.WithOptions(log.WithLevel(cfg.LogLevel))
	}

	l = l.WithFields(log.Fields{
		log.FieldKeyRun:       uuid.NewString(),
		log.FieldKeyIsolation: string(cfg.Isolation),
	})

	tlm := telemetry.TelemeterFromContext(ctx)

	if !tlm.Enabled() && cfg.Telemetry.Enabled() {
		runTlm, err := telemetry.NewTelemeter(ctx, appName, appVersion(), cfg.telemetryOutput, cfg.Telemetry)
		if err != nil {
			return nil, err
		}

		defer func() {
			if err := runTlm.Shutdown(context.WithoutCancel(ctx)); err != nil {
				l.Warnf("Failed to shut down telemetry: %v", err)
			}
		}()

		tlm = runTlm
		ctx = telemetry.ContextWithTelemeter(ctx, tlm)
	}

	var (
		rep    *report.Report
		runErr error
	)

	err := tlm.Collect(ctx, "actiontree_execute", map[string]any{
		"actions":     len(actions),
		"concurrency": cfg.Concurrency,
		"keep_going":  cfg.KeepGoing,
		"isolation":   string(cfg.Isolation),
	}, func(ctx context.Context) error {
		pool, err := newPool(cfg, l, len(actions))
		if err != nil {
			return err
		}

		s := newScheduler(cfg, l, pool, actions)
		rep, runErr = s.run(ctx)

		if err := pool.Close(); err != nil {
			l.Warnf("Failed to stop workers: %v", err)
		}

		return runErr
	})

	if rep == nil {
		return nil, err
	}

	countOutcomes(ctx, tlm, rep)

	return rep, runErr
}

// appVersion returns the version of this module as recorded in the build information of the binary.
func appVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			return dep.Version
		}
	}

	return info.Main.Version
}

// newPool returns the pool running the executors. Admission bounds the running actions, so
// only worker processes are capped.
func newPool(cfg *config, l log.Logger, actions int) (worker.Pool, error) {
	switch cfg.Isolation {
	case options.ProcessIsolation:
		return worker.NewProcessPool(min(cfg.Concurrency, actions), worker.WithLogger(l)), nil
	case options.ThreadIsolation, "":
		return worker.NewThreadPool(0), nil
	}

	return nil, errors.Errorf("runner: unknown isolation %q", cfg.Isolation)
}

func countOutcomes(ctx context.Context, tlm *telemetry.Telemeter, rep *report.Report) {
	counts := make(map[action.Status]int64)

	for _, a := range rep.Actions() {
		counts[rep.GetStatus(a).Status]++
	}

	for _, status := range []action.Status{action.Successful, action.Failed, action.Canceled} {
		tlm.Count(ctx, "actiontree_actions_"+status.String(), counts[status], nil)
	}
}
