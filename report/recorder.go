package report

import (
	"time"

	"github.com/gruntwork-io/actiontree/action"
)

// Recorder builds a Report. It is owned by the scheduler, which is the only writer during a run.
type Recorder struct {
	report *Report
}

// NewRecorder returns a recorder for a run of the given actions.
func NewRecorder(actions []*action.Action) *Recorder {
	report := &Report{
		statuses: make(map[*action.Action]*ActionStatus, len(actions)),
		actions:  append([]*action.Action(nil), actions...),
	}

	for _, a := range actions {
		report.statuses[a] = &ActionStatus{Label: a.Label(), Status: action.Pending}
	}

	return &Recorder{report: report}
}

// Report returns the report being recorded.
func (rec *Recorder) Report() *Report {
	return rec.report
}

func (rec *Recorder) update(a *action.Action, fn func(status *ActionStatus)) {
	rec.report.mu.Lock()
	defer rec.report.mu.Unlock()

	if status, ok := rec.report.statuses[a]; ok {
		fn(status)
	}
}

// SetPending records the start of the run for the action.
func (rec *Recorder) SetPending(a *action.Action, t time.Time) {
	rec.update(a, func(status *ActionStatus) {
		status.Status = action.Pending
		status.PendingTime = t
	})
}

// SetReady records that every dependency of the action is done.
func (rec *Recorder) SetReady(a *action.Action, t time.Time) {
	rec.update(a, func(status *ActionStatus) {
		status.Status = action.Ready
		status.ReadyTime = t
	})
}

// SetRunning records the dispatch of the action to a worker.
func (rec *Recorder) SetRunning(a *action.Action) {
	rec.update(a, func(status *ActionStatus) {
		status.Status = action.Running
	})
}

// SetStarted records that the executor of the action began to run.
func (rec *Recorder) SetStarted(a *action.Action, t time.Time) {
	rec.update(a, func(status *ActionStatus) {
		status.StartTime = t
	})
}

// AppendOutput attributes a chunk of output to the action.
func (rec *Recorder) AppendOutput(a *action.Action, p []byte) {
	rec.update(a, func(status *ActionStatus) {
		status.Output = append(status.Output, p...)
	})
}

// SetSuccessful records the success of the action.
func (rec *Recorder) SetSuccessful(a *action.Action, t time.Time, val any) {
	rec.update(a, func(status *ActionStatus) {
		status.Status = action.Successful
		status.SuccessTime = t
		status.ReturnValue = val
	})
}

// SetFailed records the failure of the action.
func (rec *Recorder) SetFailed(a *action.Action, t time.Time, err error) {
	rec.update(a, func(status *ActionStatus) {
		status.Status = action.Failed
		status.FailureTime = t
		status.Err = err
	})
}

// SetCanceled records that the action will never run.
func (rec *Recorder) SetCanceled(a *action.Action, t time.Time) {
	rec.update(a, func(status *ActionStatus) {
		status.Status = action.Canceled
		status.CancelTime = t
	})
}
