package action

// Closure returns root and every action it transitively depends on, each once,
// dependencies before their dependents. The order is a possible execution order.
func Closure(root *Action) []*Action {
	var (
		visited = make(map[*Action]struct{})
		ordered []*Action
		visit   func(a *Action)
	)

	visit = func(a *Action) {
		if _, ok := visited[a]; ok {
			return
		}

		visited[a] = struct{}{}

		for _, dep := range a.dependencies {
			visit(dep)
		}

		ordered = append(ordered, a)
	}

	visit(root)

	return ordered
}

// Preview returns the labels of the actions reachable from root in a possible execution order.
// Actions with an empty label are skipped.
func Preview(root *Action) []string {
	var labels []string

	for _, a := range Closure(root) {
		if a.label != "" {
			labels = append(labels, a.label)
		}
	}

	return labels
}

// DependentsIndex derives the reverse edges of the given actions: for each action,
// the actions among them that directly depend on it, in the order they are given.
func DependentsIndex(actions []*Action) map[*Action][]*Action {
	index := make(map[*Action][]*Action, len(actions))

	for _, a := range actions {
		for _, dep := range a.dependencies {
			index[dep] = append(index[dep], a)
		}
	}

	return index
}
