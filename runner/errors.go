package runner

import (
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/wire"
	"github.com/gruntwork-io/actiontree/report"
)

// SerializationError is returned when an executor, a return value or an error cannot cross
// the boundary of a worker process. It aborts the run.
type SerializationError = wire.SerializationError

// What failed to cross the boundary, as found in SerializationError.Subject.
const (
	SubjectExecutor    = wire.SubjectExecutor
	SubjectReturnValue = wire.SubjectReturnValue
	SubjectError       = wire.SubjectError
)

// RemoteError stands for an error of an unregistered type returned by an executor in a worker process.
type RemoteError = wire.RemoteError

// AggregateError holds the runtime errors of a run, in the order they were observed.
type AggregateError struct {
	Report *report.Report
	errs   []error
}

// Errors returns the runtime errors of the run.
func (err *AggregateError) Errors() []error {
	return append([]error(nil), err.errs...)
}

func (err *AggregateError) Error() string {
	return new(errors.MultiError).Append(err.errs...).Error()
}

func (err *AggregateError) Unwrap() []error {
	return err.errs
}
