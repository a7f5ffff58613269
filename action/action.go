// Package action provides the nodes of an execution graph: a unit of work with a label,
// an executor, dependencies on other actions and resource requirements.
package action

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gruntwork-io/actiontree/internal/errors"
)

// Executor is the unit of work an action runs.
type Executor interface {
	Execute(ctx context.Context) (any, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
// Functions cannot cross a process boundary, so they only run with thread isolation.
type ExecutorFunc func(ctx context.Context) (any, error)

// Execute implements Executor.
func (fn ExecutorFunc) Execute(ctx context.Context) (any, error) {
	return fn(ctx)
}

// Option configures an action at creation.
type Option func(*Action)

// WithAcceptFailedDependencies makes the action run even if some of its dependencies failed or were canceled.
func WithAcceptFailedDependencies() Option {
	return func(a *Action) {
		a.acceptFailedDependencies = true
	}
}

// Action is a node of the execution graph.
type Action struct {
	executor     Executor
	resources    map[*Resource]int
	label        string
	dependencies []*Action
	resourceKeys []*Resource
	status       atomic.Int32
	id           uuid.UUID

	acceptFailedDependencies bool
}

// New returns an action running the given executor. The label is used in logs and reports and may be empty.
func New(label string, executor Executor, opts ...Option) *Action {
	a := &Action{
		id:        uuid.New(),
		label:     label,
		executor:  executor,
		resources: make(map[*Resource]int),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ID returns the unique identifier of the action.
func (a *Action) ID() uuid.UUID {
	return a.id
}

// Label returns the action label.
func (a *Action) Label() string {
	return a.label
}

// Executor returns the executor run by the action.
func (a *Action) Executor() Executor {
	return a.executor
}

// AcceptsFailedDependencies reports whether the action runs when some of its dependencies did not succeed.
func (a *Action) AcceptsFailedDependencies() bool {
	return a.acceptFailedDependencies
}

// Status returns the status of the action in the current or last run.
func (a *Action) Status() Status {
	return Status(a.status.Load())
}

// SetStatus is called by the scheduler, which is the only writer during a run.
func (a *Action) SetStatus(status Status) {
	a.status.Store(int32(status))
}

// AddDependency makes dependency a prerequisite of the action. If the action is
// already reachable from dependency the graph is left unmodified and
// a *DependencyCycleError is returned.
func (a *Action) AddDependency(dependency *Action) error {
	if dependency == nil {
		return errors.New("nil dependency")
	}

	if slices.Contains(a.dependencies, dependency) {
		return nil
	}

	if slices.Contains(Closure(dependency), a) {
		return errors.New(&DependencyCycleError{Action: a, Dependency: dependency})
	}

	a.dependencies = append(a.dependencies, dependency)

	return nil
}

// Dependencies returns the direct dependencies in insertion order.
func (a *Action) Dependencies() []*Action {
	return slices.Clone(a.dependencies)
}

// RequireResource sets the quantity of the resource the action needs while it runs.
// Calling it again for the same resource replaces the quantity.
func (a *Action) RequireResource(resource *Resource, quantity int) error {
	if resource == nil {
		return errors.New("nil resource")
	}

	if quantity < 0 {
		return errors.Errorf("action %q: negative quantity %d of resource %q", a.label, quantity, resource.Name())
	}

	if _, ok := a.resources[resource]; !ok {
		a.resourceKeys = append(a.resourceKeys, resource)
	}

	a.resources[resource] = quantity

	return nil
}

// Requirements returns the resources the action needs, including the implicit
// unit of CPU unless another quantity was declared.
func (a *Action) Requirements() []Requirement {
	reqs := make([]Requirement, 0, len(a.resourceKeys)+1)

	if _, ok := a.resources[CPU]; !ok {
		reqs = append(reqs, Requirement{Resource: CPU, Quantity: 1})
	}

	for _, r := range a.resourceKeys {
		reqs = append(reqs, Requirement{Resource: r, Quantity: a.resources[r]})
	}

	return reqs
}

func (a *Action) String() string {
	if a.label == "" {
		return a.id.String()
	}

	return a.label
}
