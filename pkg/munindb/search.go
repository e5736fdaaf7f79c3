package munindb

import "github.com/orneryd/munindb/pkg/graph"

// PathStep is one hop of a graph path: the predicate followed and the
// node reached.
type PathStep struct {
	Predicate string
	Node      string
}

// BFS enumerates the simple paths from start to target, breadth first,
// up to maxDepth hops. With reverse set, edges are walked backwards.
// Parallel predicates between the same pair yield one path each. An
// unknown start fails with ErrUnknownEntity; an unreachable or unknown
// target yields no paths.
func (kb *KB) BFS(start, target string, maxDepth int, reverse bool) ([][]PathStep, error) {
	if !kb.store.HasEntity(start) {
		return nil, ErrUnknownEntity
	}
	adjacency := kb.store.Neighbors
	if reverse {
		adjacency = kb.store.Predecessors
	}

	type frontier struct {
		node    string
		path    []PathStep
		visited map[string]bool
	}
	queue := []frontier{{
		node:    start,
		visited: map[string]bool{start: true},
	}}

	var found [][]PathStep
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) >= maxDepth {
			continue
		}
		for _, nb := range adjacency(cur.node) {
			if cur.visited[nb.Name] {
				continue
			}
			for _, pred := range nb.Predicates {
				path := make([]PathStep, len(cur.path), len(cur.path)+1)
				copy(path, cur.path)
				path = append(path, PathStep{Predicate: pred, Node: nb.Name})
				if nb.Name == target {
					found = append(found, path)
					continue
				}
				visited := make(map[string]bool, len(cur.visited)+1)
				for k := range cur.visited {
					visited[k] = true
				}
				visited[nb.Name] = true
				queue = append(queue, frontier{node: nb.Name, path: path, visited: visited})
			}
		}
	}
	return found, nil
}

// Neighbors returns the forward adjacency of a stored entity.
func (kb *KB) Neighbors(name string) ([]graph.Neighbor, error) {
	if !kb.store.HasEntity(name) {
		return nil, ErrUnknownEntity
	}
	return kb.store.Neighbors(name), nil
}
