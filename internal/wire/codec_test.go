package wire_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greet struct {
	Name string
}

func (g *greet) Execute(context.Context) (any, error) {
	return "hello " + g.Name, nil
}

type point struct {
	X, Y int
}

type codedError struct {
	Code int
}

func (err *codedError) Error() string {
	return fmt.Sprintf("code %d", err.Code)
}

type holdsFunc struct {
	Fn func()
}

func init() {
	wire.Register(&greet{})
	wire.Register(point{})
	wire.Register(&codedError{})
}

func TestJobRoundTrip(t *testing.T) {
	t.Parallel()

	deps := []action.DependencyStatus{{Label: "dep", Status: action.Failed}}

	data, err := wire.EncodeJob("greet", &greet{Name: "world"}, deps)
	require.NoError(t, err)

	job, executor, err := wire.DecodeJob(data)
	require.NoError(t, err)
	assert.Equal(t, "greet", job.Label)
	assert.Equal(t, deps, job.Dependencies)

	val, err := executor.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello world", val)
}

func TestEncodeJobRejectsUnserializableExecutors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		executor action.Executor
		name     string
	}{
		{
			name:     "func",
			executor: action.ExecutorFunc(func(context.Context) (any, error) { return nil, nil }),
		},
		{
			name:     "unregistered",
			executor: &unregistered{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := wire.EncodeJob(tc.name, tc.executor, nil)
			require.Error(t, err)

			var serErr *wire.SerializationError
			require.True(t, errors.As(err, &serErr))
			assert.Equal(t, wire.SubjectExecutor, serErr.Subject)
			assert.Equal(t, tc.name, serErr.Label)
		})
	}
}

type unregistered struct{}

func (*unregistered) Execute(context.Context) (any, error) { return nil, nil }

func TestResultValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		value    any
		expected any
		name     string
	}{
		{name: "nil", value: nil, expected: nil},
		{name: "string", value: "out", expected: "out"},
		{name: "registered struct", value: point{X: 1, Y: 2}, expected: point{X: 1, Y: 2}},
		{name: "generic map", value: map[string]string{"a": "b"}, expected: map[string]any{"a": "b"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := wire.EncodeResult("a", tc.value, nil)
			require.NoError(t, err)

			val, execErr, err := wire.DecodeResult("a", data)
			require.NoError(t, err)
			require.NoError(t, execErr)
			assert.Equal(t, tc.expected, val)
		})
	}
}

func TestResultUnserializableValue(t *testing.T) {
	t.Parallel()

	_, err := wire.EncodeResult("a", holdsFunc{Fn: func() {}}, nil)
	require.Error(t, err)

	var serErr *wire.SerializationError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, wire.SubjectReturnValue, serErr.Subject)
}

func TestResultErrors(t *testing.T) {
	t.Parallel()

	data, err := wire.EncodeResult("a", nil, errors.New(&codedError{Code: 7}))
	require.NoError(t, err)

	_, execErr, err := wire.DecodeResult("a", data)
	require.NoError(t, err)

	var coded *codedError
	require.True(t, errors.As(execErr, &coded))
	assert.Equal(t, 7, coded.Code)

	data, err = wire.EncodeResult("a", nil, fmt.Errorf("plain failure"))
	require.NoError(t, err)

	_, execErr, err = wire.DecodeResult("a", data)
	require.NoError(t, err)

	var remote *wire.RemoteError
	require.True(t, errors.As(execErr, &remote))
	assert.Equal(t, "plain failure", remote.Error())
	assert.Equal(t, "*errors.errorString", remote.Type)
}

func TestDecodeResultReportsFailingPart(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		result  wire.Result
		name    string
		subject string
	}{
		{
			name:    "error of unknown type",
			result:  wire.Result{Err: &wire.ErrorEnvelope{Type: "example.com/gone.Error", Message: "gone", Data: []byte{0x80}}},
			subject: wire.SubjectError,
		},
		{
			name:    "value of unknown type",
			result:  wire.Result{Value: wire.Envelope{Type: "example.com/gone.Value", Data: []byte{0x80}}},
			subject: wire.SubjectReturnValue,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := wire.Marshal(tc.result)
			require.NoError(t, err)

			_, _, err = wire.DecodeResult("a", data)

			var serErr *wire.SerializationError
			require.True(t, errors.As(err, &serErr))
			assert.Equal(t, tc.subject, serErr.Subject)
			assert.Equal(t, "a", serErr.Label)
		})
	}
}

func TestTypeName(t *testing.T) {
	t.Parallel()

	assert.True(t, wire.Registered(&greet{}))
	assert.False(t, wire.Registered(greet{}))
	assert.False(t, wire.Registered(nil))
}
