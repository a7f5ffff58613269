package runner

import (
	"io"
	"os"

	"github.com/gruntwork-io/actiontree/options"
	"github.com/gruntwork-io/actiontree/pkg/log"
)

// Option configures an execution. Options are applied in order.
type Option func(*config)

type config struct {
	*options.ExecuteOptions

	hooks           Hooks
	clock           Clock
	output          io.Writer
	telemetryOutput io.Writer
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		ExecuteOptions: options.NewExecuteOptions(),
		hooks:           NopHooks{},
		clock:           SystemClock,
		telemetryOutput: os.Stderr,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithOptions replaces the execution options, for example with options read from the environment.
func WithOptions(opts *options.ExecuteOptions) Option {
	return func(cfg *config) {
		if opts != nil {
			cfg.ExecuteOptions = opts.Clone()
		}
	}
}

// WithConcurrency sets how many actions can run at the same time. It is also the availability of action.CPU.
// A non-positive value means the number of CPUs plus one.
func WithConcurrency(concurrency int) Option {
	return func(cfg *config) {
		cfg.Concurrency = options.ResolveConcurrency(concurrency)
	}
}

// WithUnlimitedConcurrency lifts the limit on the number of actions running at the same time.
func WithUnlimitedConcurrency() Option {
	return func(cfg *config) {
		cfg.Concurrency = options.UnlimitedConcurrency
	}
}

// WithKeepGoing keeps running the actions that do not depend on a failed one.
func WithKeepGoing(keepGoing bool) Option {
	return func(cfg *config) {
		cfg.KeepGoing = keepGoing
	}
}

// WithFailOnError controls whether runtime errors are returned as an *AggregateError. Enabled by default.
func WithFailOnError(failOnError bool) Option {
	return func(cfg *config) {
		cfg.FailOnError = failOnError
	}
}

// WithHooks sets the hooks observing the run.
func WithHooks(hooks Hooks) Option {
	return func(cfg *config) {
		if hooks == nil {
			hooks = NopHooks{}
		}

		cfg.hooks = hooks
	}
}

// WithClock sets the clock giving the timestamps of the run.
func WithClock(clock Clock) Option {
	return func(cfg *config) {
		if clock == nil {
			clock = SystemClock
		}

		cfg.clock = clock
	}
}

// WithLogger sets the logger receiving the scheduling decisions. The run logs at the level of logger
// unless WithLogLevel comes after.
func WithLogger(logger log.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = logger

		if logger != nil {
			cfg.LogLevel = logger.Level()
		}
	}
}

// WithLogLevel sets the level of the run logger.
func WithLogLevel(level log.Level) Option {
	return func(cfg *config) {
		cfg.LogLevel = level
	}
}

// WithIsolation selects where executors run.
func WithIsolation(isolation options.Isolation) Option {
	return func(cfg *config) {
		cfg.Isolation = isolation
	}
}

// WithOutput echoes the output of the actions to w as it is produced, each line prefixed with the action label.
func WithOutput(w io.Writer) Option {
	return func(cfg *config) {
		cfg.output = w
	}
}

// WithTelemetryOutput sets where the console exporters write when the options enable telemetry. Defaults to os.Stderr.
func WithTelemetryOutput(w io.Writer) Option {
	return func(cfg *config) {
		cfg.telemetryOutput = w
	}
}
