package action

import "fmt"

// DependencyCycleError is returned when adding a dependency would make an action depend on itself.
type DependencyCycleError struct {
	Action     *Action
	Dependency *Action
}

func (err *DependencyCycleError) Error() string {
	if err.Action == err.Dependency {
		return fmt.Sprintf("dependency cycle: action %q cannot depend on itself", err.Action.Label())
	}

	return fmt.Sprintf("dependency cycle: action %q cannot depend on %q which already depends on it", err.Action.Label(), err.Dependency.Label())
}
