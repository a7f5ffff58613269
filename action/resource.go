package action

import "github.com/gruntwork-io/actiontree/internal/errors"

// Unlimited is the availability of a resource that always admits.
const Unlimited = -1

// CPU is the implicit resource modelling an execution slot. Its availability
// is the concurrency of the run, and every action requires one unit of it
// unless it declares another quantity.
var CPU = &Resource{name: "cpu", availability: Unlimited}

// Resource is a named capacity that actions reserve quantities of while they run.
type Resource struct {
	name         string
	availability int
}

// NewResource returns a resource with the given availability. Use Unlimited for no limit.
func NewResource(name string, availability int) (*Resource, error) {
	if availability < 0 && availability != Unlimited {
		return nil, errors.Errorf("resource %q: invalid availability %d", name, availability)
	}

	return &Resource{name: name, availability: availability}, nil
}

// Name returns the resource name.
func (r *Resource) Name() string {
	return r.name
}

// Availability returns the capacity of the resource, or Unlimited.
func (r *Resource) Availability() int {
	return r.availability
}

func (r *Resource) String() string {
	return r.name
}

// Requirement is a quantity of a resource required by an action.
type Requirement struct {
	Resource *Resource
	Quantity int
}
