package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	assert.NoError(t, errors.New(nil))

	err := errors.New("boom")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.NotEmpty(t, errors.ErrorStack(err))
	assert.Empty(t, errors.ErrorStack(fmt.Errorf("plain")))
}

func TestRecover(t *testing.T) {
	t.Parallel()

	run := func() (err error) {
		defer errors.Recover(func(cause error) {
			err = cause
		})

		panic("something broke")
	}

	err := run()
	require.Error(t, err)
	assert.Equal(t, "something broke", err.Error())
	assert.NotEmpty(t, errors.ErrorStack(err))
}

func TestMultiError(t *testing.T) {
	t.Parallel()

	var errs *errors.MultiError

	assert.Empty(t, errs.WrappedErrors())

	first := fmt.Errorf("first")
	second := fmt.Errorf("second")

	errs = errs.Append(first, nil, second)
	assert.Equal(t, []error{first, second}, errs.WrappedErrors())
	assert.True(t, errors.Is(errs, second))
	assert.Contains(t, errs.Error(), "2 errors occurred")
	assert.Contains(t, errs.Error(), "* first")
}

func TestUnwrapMultiErrors(t *testing.T) {
	t.Parallel()

	a := fmt.Errorf("a")
	b := fmt.Errorf("b")
	inner := new(errors.MultiError).Append(a, b)
	outer := new(errors.MultiError).Append(fmt.Errorf("wrap: %w", inner))

	assert.ElementsMatch(t, []error{a, b}, errors.UnwrapMultiErrors(outer))
}

func TestIsContextCanceled(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsContextCanceled(fmt.Errorf("run: %w", context.Canceled)))
	assert.False(t, errors.IsContextCanceled(context.DeadlineExceeded))
}
