package risk

// Graph is the dependency adjacency over active task IDs: edges point
// from a task to the tasks it depends on
type Graph map[string][]string

// BuildGraph assembles the dependency graph for one sweep
func BuildGraph(tasks []ActiveTask) Graph {
	graph := make(Graph, len(tasks))
	for _, active := range tasks {
		graph[active.Task.ID] = active.Task.Dependencies
	}
	return graph
}

// InCycle reports whether the task participates in a dependency cycle,
// using colour-marking DFS. Edges to tasks outside the graph are
// treated as leaves.
func (g Graph) InCycle(taskID string) bool {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	colour := make(map[string]int, len(g))

	var visit func(id string) bool
	visit = func(id string) bool {
		colour[id] = gray
		for _, dep := range g[id] {
			switch colour[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colour[id] = black
		return false
	}
	if _, ok := g[taskID]; !ok {
		return false
	}
	return visit(taskID)
}
