// Package options provides a set of options that configure the behavior of an execution.
package options

import (
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/pkg/log"
	"github.com/gruntwork-io/actiontree/telemetry"
	"github.com/gruntwork-io/go-commons/env"
)

const (
	// UnlimitedConcurrency no limits on the number of concurrently running actions (limited by GOPROCS).
	UnlimitedConcurrency = math.MaxInt32

	defaultLogLevel = log.InfoLevel
)

// Environment variables read by ApplyEnv.
const (
	EnvConcurrency                    = "ACTIONTREE_CONCURRENCY"
	EnvKeepGoing                      = "ACTIONTREE_KEEP_GOING"
	EnvFailOnError                    = "ACTIONTREE_FAIL_ON_ERROR"
	EnvIsolation                      = "ACTIONTREE_ISOLATION"
	EnvLogLevel                       = "ACTIONTREE_LOG_LEVEL"
	EnvTraceExporter                  = "ACTIONTREE_TELEMETRY_TRACE_EXPORTER"
	EnvTraceExporterHTTPEndpoint      = "ACTIONTREE_TELEMETRY_TRACE_EXPORTER_HTTP_ENDPOINT"
	EnvTraceExporterInsecureEndpoint  = "ACTIONTREE_TELEMETRY_TRACE_EXPORTER_INSECURE_ENDPOINT"
	EnvMetricExporter                 = "ACTIONTREE_TELEMETRY_METRIC_EXPORTER"
	EnvMetricExporterInsecureEndpoint = "ACTIONTREE_TELEMETRY_METRIC_EXPORTER_INSECURE_ENDPOINT"
	EnvTraceParent                    = "TRACEPARENT"
)

// Isolation selects where executors run.
type Isolation string

const (
	// ThreadIsolation runs executors on goroutines of the host process.
	ThreadIsolation Isolation = "thread"
	// ProcessIsolation runs executors in pooled worker processes.
	ProcessIsolation Isolation = "process"
)

// ParseIsolation takes a string and returns the Isolation constant.
func ParseIsolation(str string) (Isolation, error) {
	switch iso := Isolation(strings.ToLower(strings.TrimSpace(str))); iso {
	case ThreadIsolation, ProcessIsolation:
		return iso, nil
	}

	return "", errors.Errorf("invalid isolation %q, supported: %s, %s", str, ThreadIsolation, ProcessIsolation)
}

// ExecuteOptions represents options that configure an execution.
type ExecuteOptions struct {
	// Logger receives scheduling decisions at debug and trace level.
	Logger log.Logger

	// Telemetry configures the exporters used around an execution.
	Telemetry *telemetry.Options

	Isolation Isolation

	// Concurrency is the number of concurrently running actions and the availability of the cpu resource.
	Concurrency int

	LogLevel log.Level

	// KeepGoing keeps dispatching independent actions after a failure.
	KeepGoing bool

	// FailOnError makes an execution with runtime errors return an aggregate error.
	FailOnError bool
}

// NewExecuteOptions returns options with the default values.
func NewExecuteOptions() *ExecuteOptions {
	return &ExecuteOptions{
		Logger:      log.Default(),
		Telemetry:   new(telemetry.Options),
		Isolation:   ThreadIsolation,
		Concurrency: DefaultConcurrency(),
		LogLevel:    defaultLogLevel,
		FailOnError: true,
	}
}

// DefaultConcurrency returns the concurrency used when none is configured.
func DefaultConcurrency() int {
	return runtime.NumCPU() + 1
}

// ResolveConcurrency maps non-positive values to the default concurrency.
func ResolveConcurrency(concurrency int) int {
	if concurrency <= 0 {
		return DefaultConcurrency()
	}

	return concurrency
}

// Clone returns a copy of the options.
func (opts *ExecuteOptions) Clone() *ExecuteOptions {
	newOpts := *opts

	if opts.Logger != nil {
		newOpts.Logger = opts.Logger.Clone()
	}

	if opts.Telemetry != nil {
		telemetryOpts := *opts.Telemetry
		newOpts.Telemetry = &telemetryOpts
	}

	return &newOpts
}

// ApplyEnv overrides the options with the values of the given environment variables.
func (opts *ExecuteOptions) ApplyEnv(vars map[string]string) error {
	if val := strings.TrimSpace(vars[EnvConcurrency]); val != "" {
		concurrency, err := strconv.Atoi(val)
		if err != nil {
			return errors.Errorf("invalid %s value %q: %w", EnvConcurrency, val, err)
		}

		opts.Concurrency = ResolveConcurrency(concurrency)
	}

	opts.KeepGoing = env.GetBool(vars[EnvKeepGoing], opts.KeepGoing)
	opts.FailOnError = env.GetBool(vars[EnvFailOnError], opts.FailOnError)

	if val := vars[EnvIsolation]; val != "" {
		isolation, err := ParseIsolation(val)
		if err != nil {
			return err
		}

		opts.Isolation = isolation
	}

	if val := vars[EnvLogLevel]; val != "" {
		level, err := log.ParseLevel(strings.TrimSpace(val))
		if err != nil {
			return err
		}

		opts.LogLevel = level

		if opts.Logger != nil {
			opts.Logger = opts.Logger.WithOptions(log.WithLevel(level))
		}
	}

	if opts.Telemetry == nil {
		opts.Telemetry = new(telemetry.Options)
	}

	tlm := opts.Telemetry
	tlm.TraceExporter = env.GetString(vars[EnvTraceExporter], tlm.TraceExporter)
	tlm.TraceExporterHTTPEndpoint = env.GetString(vars[EnvTraceExporterHTTPEndpoint], tlm.TraceExporterHTTPEndpoint)
	tlm.TraceExporterInsecureEndpoint = env.GetBool(vars[EnvTraceExporterInsecureEndpoint], tlm.TraceExporterInsecureEndpoint)
	tlm.MetricExporter = env.GetString(vars[EnvMetricExporter], tlm.MetricExporter)
	tlm.MetricExporterInsecureEndpoint = env.GetBool(vars[EnvMetricExporterInsecureEndpoint], tlm.MetricExporterInsecureEndpoint)
	tlm.TraceParent = env.GetString(vars[EnvTraceParent], tlm.TraceParent)

	return nil
}

// FromEnvironment returns default options overridden by the process environment.
func FromEnvironment() (*ExecuteOptions, error) {
	opts := NewExecuteOptions()

	if err := opts.ApplyEnv(env.Parse(os.Environ())); err != nil {
		return nil, err
	}

	return opts, nil
}
