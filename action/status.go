package action

import "github.com/gruntwork-io/actiontree/internal/errors"

// Status is the per-run state of an action.
type Status int32

const (
	// Pending is the initial status: some dependency has not reached a terminal status yet.
	Pending Status = iota
	// Ready means every dependency is terminal and the action waits for resources.
	Ready
	// Running means the action was dispatched to a worker.
	Running
	// Successful is terminal: the executor returned without error.
	Successful
	// Failed is terminal: the executor returned an error.
	Failed
	// Canceled is terminal: the action was never started.
	Canceled
)

var statusNames = map[Status]string{
	Pending:    "pending",
	Ready:      "ready",
	Running:    "running",
	Successful: "successful",
	Failed:     "failed",
	Canceled:   "canceled",
}

// String implements fmt.Stringer.
func (status Status) String() string {
	if name, ok := statusNames[status]; ok {
		return name
	}

	return "unknown"
}

// IsTerminal reports whether the status can no longer change during a run.
func (status Status) IsTerminal() bool {
	return status == Successful || status == Failed || status == Canceled
}

// MarshalText implements encoding.TextMarshaler.
func (status Status) MarshalText() ([]byte, error) {
	if name, ok := statusNames[status]; ok {
		return []byte(name), nil
	}

	return nil, errors.Errorf("invalid status: %d", status)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (status *Status) UnmarshalText(text []byte) error {
	for val, name := range statusNames {
		if name == string(text) {
			*status = val
			return nil
		}
	}

	return errors.Errorf("invalid status: %q", string(text))
}
