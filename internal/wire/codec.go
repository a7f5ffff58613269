package wire

import (
	"fmt"
	"reflect"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Subjects of a SerializationError.
const (
	SubjectExecutor    = "executor"
	SubjectReturnValue = "return value"
	SubjectError       = "error"
)

// Envelope is a msgpack payload tagged with its registered type. An empty Type
// means the payload is decoded into generic values.
type Envelope struct {
	Type string `msgpack:"type"`
	Data []byte `msgpack:"data"`
}

// ErrorEnvelope carries an error across the boundary.
type ErrorEnvelope struct {
	Type    string `msgpack:"type"`
	Message string `msgpack:"message"`
	Data    []byte `msgpack:"data"`
}

// Job is what a worker process needs to run an action.
type Job struct {
	Label        string                    `msgpack:"label"`
	Executor     Envelope                  `msgpack:"executor"`
	Dependencies []action.DependencyStatus `msgpack:"dependencies"`
}

// Result is the outcome of a job.
type Result struct {
	Err   *ErrorEnvelope `msgpack:"err"`
	Value Envelope       `msgpack:"value"`
}

// Marshal encodes v with msgpack.
func Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.New(err)
	}

	return data, nil
}

// Unmarshal decodes msgpack data into v.
func Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.New(err)
	}

	return nil
}

// EncodeJob checks that the executor of the action can cross the boundary and encodes the job.
func EncodeJob(label string, executor action.Executor, deps []action.DependencyStatus) ([]byte, error) {
	if !Registered(executor) {
		return nil, &SerializationError{
			Label:   label,
			Subject: SubjectExecutor,
			Err:     errors.Errorf("type %T is not registered", executor),
		}
	}

	env, err := encodeTyped(executor)
	if err != nil {
		return nil, &SerializationError{Label: label, Subject: SubjectExecutor, Err: err}
	}

	return Marshal(Job{Label: label, Executor: env, Dependencies: deps})
}

// DecodeJob decodes a job and its executor.
func DecodeJob(data []byte) (*Job, action.Executor, error) {
	job := new(Job)
	if err := Unmarshal(data, job); err != nil {
		return nil, nil, err
	}

	val, err := decodeEnvelope(job.Executor)
	if err != nil {
		return nil, nil, err
	}

	executor, ok := val.(action.Executor)
	if !ok {
		return nil, nil, errors.Errorf("type %s does not implement action.Executor", job.Executor.Type)
	}

	return job, executor, nil
}

// EncodeResult encodes the outcome of an executor.
func EncodeResult(label string, val any, execErr error) ([]byte, error) {
	result := Result{}

	if execErr != nil {
		env, err := EncodeError(execErr)
		if err != nil {
			return nil, &SerializationError{Label: label, Subject: SubjectError, Err: err}
		}

		result.Err = env
	} else {
		env, err := EncodeValue(val)
		if err != nil {
			return nil, &SerializationError{Label: label, Subject: SubjectReturnValue, Err: err}
		}

		result.Value = env
	}

	return Marshal(result)
}

// DecodeResult decodes the value and the error encoded by EncodeResult. The last error is a
// *SerializationError whose Subject tells which part could not be decoded.
func DecodeResult(label string, data []byte) (any, error, error) { //nolint:revive
	result := new(Result)
	if err := Unmarshal(data, result); err != nil {
		return nil, nil, &SerializationError{Label: label, Subject: SubjectReturnValue, Err: err}
	}

	if result.Err != nil {
		execErr, err := DecodeError(result.Err)
		if err != nil {
			return nil, nil, &SerializationError{Label: label, Subject: SubjectError, Err: err}
		}

		return nil, execErr, nil
	}

	val, err := decodeEnvelope(result.Value)
	if err != nil {
		return nil, nil, &SerializationError{Label: label, Subject: SubjectReturnValue, Err: err}
	}

	return val, nil, nil
}

// EncodeValue encodes a return value. Registered types keep their type, others decode into generic values.
func EncodeValue(val any) (Envelope, error) {
	if val == nil {
		return Envelope{}, nil
	}

	if Registered(val) {
		return encodeTyped(val)
	}

	data, err := Marshal(val)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Data: data}, nil
}

// EncodeError encodes an error. Errors of unregistered types cross as a *RemoteError.
func EncodeError(execErr error) (*ErrorEnvelope, error) {
	env := &ErrorEnvelope{
		Type:    fmt.Sprintf("%T", execErr),
		Message: execErr.Error(),
	}

	target := registeredError(execErr)
	if target == nil {
		return env, nil
	}

	typed, err := encodeTyped(target)
	if err != nil {
		return nil, err
	}

	env.Type = typed.Type
	env.Data = typed.Data

	return env, nil
}

// DecodeError rebuilds an error encoded by EncodeError.
func DecodeError(env *ErrorEnvelope) (error, error) { //nolint:revive
	if len(env.Data) == 0 {
		return &RemoteError{Type: env.Type, Message: env.Message}, nil
	}

	val, err := decodeEnvelope(Envelope{Type: env.Type, Data: env.Data})
	if err != nil {
		return nil, err
	}

	execErr, ok := val.(error)
	if !ok {
		return nil, errors.Errorf("type %s does not implement error", env.Type)
	}

	return execErr, nil
}

// registeredError walks the chain of wrapped errors and returns the first one of a registered type.
func registeredError(err error) error {
	for err != nil {
		if Registered(err) {
			return err
		}

		err = errors.Unwrap(err)
	}

	return nil
}

func encodeTyped(val any) (Envelope, error) {
	data, err := Marshal(val)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Type: TypeName(reflect.TypeOf(val)), Data: data}, nil
}

func decodeEnvelope(env Envelope) (any, error) {
	if len(env.Data) == 0 {
		return nil, nil
	}

	if env.Type == "" {
		var val any
		if err := Unmarshal(env.Data, &val); err != nil {
			return nil, err
		}

		return val, nil
	}

	typ, ok := lookup(env.Type)
	if !ok {
		return nil, errors.Errorf("type %s is not registered", env.Type)
	}

	if typ.Kind() == reflect.Pointer {
		ptr := reflect.New(typ.Elem())
		if err := Unmarshal(env.Data, ptr.Interface()); err != nil {
			return nil, err
		}

		return ptr.Interface(), nil
	}

	ptr := reflect.New(typ)
	if err := Unmarshal(env.Data, ptr.Interface()); err != nil {
		return nil, err
	}

	return ptr.Elem().Interface(), nil
}
