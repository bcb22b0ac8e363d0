package pathway

import "fmt"

// ReactionGraph is a small directed graph over the reactions of a single
// pathway. Nodes are indexes into the pathway's reaction slice and an edge
// from u to v means u is upstream of v.
type ReactionGraph struct {
	order      []int
	dependents map[int][]int
	indegree   map[int]int
}

// NewReactionGraph returns an empty graph.
func NewReactionGraph() *ReactionGraph {
	return &ReactionGraph{
		dependents: make(map[int][]int),
		indegree:   make(map[int]int),
	}
}

// AddNode adds n to the graph. Adding an existing node is a no-op.
func (g *ReactionGraph) AddNode(n int) {
	if g.HasNode(n) {
		return
	}
	g.order = append(g.order, n)
	g.indegree[n] = 0
}

// HasNode reports whether n has been added.
func (g *ReactionGraph) HasNode(n int) bool {
	_, ok := g.indegree[n]
	return ok
}

// Len returns the number of nodes.
func (g *ReactionGraph) Len() int { return len(g.order) }

// AddEdge adds the edge from -> to. Both nodes must already exist.
func (g *ReactionGraph) AddEdge(from, to int) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %d -> %d", from, from)
	}
	if !g.HasNode(from) {
		return fmt.Errorf("source node not found: %d", from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("destination node not found: %d", to)
	}
	for _, d := range g.dependents[from] {
		if d == to {
			return nil
		}
	}
	g.dependents[from] = append(g.dependents[from], to)
	g.indegree[to]++
	return nil
}

// TopologicalSort orders the nodes so every edge points forward, using Kahn's
// algorithm. Nodes that become ready at the same time keep insertion order.
func (g *ReactionGraph) TopologicalSort() ([]int, error) {
	indegree := make(map[int]int, len(g.indegree))
	queue := make([]int, 0, len(g.order))
	for _, n := range g.order {
		indegree[n] = g.indegree[n]
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	sorted := make([]int, 0, len(g.order))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		sorted = append(sorted, n)
		for _, d := range g.dependents[n] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(sorted) != len(g.order) {
		return nil, fmt.Errorf("cycle detected: sorted %d of %d reactions", len(sorted), len(g.order))
	}
	return sorted, nil
}
