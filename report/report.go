// Package report provides the execution report of a run: one status record per action,
// with the timestamps of the transitions it went through, its outcome and its output.
package report

import (
	"bytes"
	"sync"
	"time"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/mitchellh/mapstructure"
)

// ActionStatus is the record of one action in a run. Zero timestamps mean the transition was not traversed.
// At most one of SuccessTime, FailureTime and CancelTime is set.
type ActionStatus struct {
	PendingTime time.Time
	ReadyTime   time.Time
	StartTime   time.Time
	SuccessTime time.Time
	FailureTime time.Time
	CancelTime  time.Time
	ReturnValue any
	Err         error
	Label       string
	Output      []byte
	Status      action.Status
}

// EndTime returns the time the action reached its terminal status.
func (s ActionStatus) EndTime() time.Time {
	switch s.Status {
	case action.Successful:
		return s.SuccessTime
	case action.Failed:
		return s.FailureTime
	case action.Canceled:
		return s.CancelTime
	case action.Pending, action.Ready, action.Running:
	}

	return time.Time{}
}

// Duration returns how long the action ran, or zero if it never started or is not finished.
func (s ActionStatus) Duration() time.Duration {
	end := s.EndTime()
	if s.StartTime.IsZero() || end.IsZero() {
		return 0
	}

	return end.Sub(s.StartTime)
}

// DecodeReturnValue decodes the return value into target. This is useful when the value
// crossed a process boundary and came back as generic maps and slices.
func (s ActionStatus) DecodeReturnValue(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(s.ReturnValue); err != nil {
		return errors.Errorf("failed to decode return value of %q: %w", s.Label, err)
	}

	return nil
}

// Report is the execution report of a run.
type Report struct {
	statuses map[*action.Action]*ActionStatus
	actions  []*action.Action
	mu       sync.RWMutex
}

// Get returns a copy of the status record of the action.
func (r *Report) Get(a *action.Action) (ActionStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.statuses[a]
	if !ok {
		return ActionStatus{}, false
	}

	return status.clone(), true
}

// GetStatus returns a copy of the status record of the action, or a zero record if
// the action was not part of the run.
func (r *Report) GetStatus(a *action.Action) ActionStatus {
	status, _ := r.Get(a)
	return status
}

// Actions returns the actions of the run, dependencies first.
func (r *Report) Actions() []*action.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*action.Action(nil), r.actions...)
}

// Len returns the number of actions in the report.
func (r *Report) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.actions)
}

// IsSuccess reports whether every action of the run was successful.
func (r *Report) IsSuccess() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, status := range r.statuses {
		if status.Status != action.Successful {
			return false
		}
	}

	return true
}

// Errors returns the errors of the failed actions, in the order of the actions.
func (r *Report) Errors() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error

	for _, a := range r.actions {
		if err := r.statuses[a].Err; err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func (s *ActionStatus) clone() ActionStatus {
	c := *s
	c.Output = bytes.Clone(s.Output)

	return c
}
