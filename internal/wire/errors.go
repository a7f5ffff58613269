package wire

import "fmt"

// SerializationError is returned when a value cannot cross the worker boundary.
type SerializationError struct {
	Err     error
	Label   string
	Subject string
}

func (err *SerializationError) Error() string {
	return fmt.Sprintf("action %q: %s cannot cross the worker boundary: %v", err.Label, err.Subject, err.Err)
}

func (err *SerializationError) Unwrap() error {
	return err.Err
}

// RemoteError stands for an error of an unregistered type raised in a worker process.
type RemoteError struct {
	Type    string `msgpack:"type"`
	Message string `msgpack:"message"`
}

func (err *RemoteError) Error() string {
	return err.Message
}
