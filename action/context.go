package action

import (
	"context"
	"io"
)

type ctxKey byte

const (
	outputContextKey ctxKey = iota
	dependencyStatusesContextKey
	labelContextKey
)

// DependencyStatus is the outcome of a direct dependency, as seen by the executor of its dependent.
type DependencyStatus struct {
	Label  string `msgpack:"label"`
	Status Status `msgpack:"status"`
}

// ContextWithOutput returns a new context whose executor output is written to w.
func ContextWithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputContextKey, w)
}

// Output returns the writer capturing the output of the running action.
// Text written to it is attributed to the action as it is produced.
func Output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputContextKey).(io.Writer); ok {
		return w
	}

	return io.Discard
}

// ContextWithDependencyStatuses returns a new context carrying the statuses of the direct dependencies.
func ContextWithDependencyStatuses(ctx context.Context, statuses []DependencyStatus) context.Context {
	return context.WithValue(ctx, dependencyStatusesContextKey, statuses)
}

// DependencyStatuses returns the statuses of the direct dependencies of the running action.
func DependencyStatuses(ctx context.Context) []DependencyStatus {
	if statuses, ok := ctx.Value(dependencyStatusesContextKey).([]DependencyStatus); ok {
		return statuses
	}

	return nil
}

// ContextWithLabel returns a new context carrying the label of the running action.
func ContextWithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelContextKey, label)
}

// Label returns the label of the running action.
func Label(ctx context.Context) string {
	if label, ok := ctx.Value(labelContextKey).(string); ok {
		return label
	}

	return ""
}
