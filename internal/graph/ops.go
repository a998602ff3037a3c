package graph

import (
	"sort"
	"strings"
)

// KeptTactics survive ExcludeTactics.
var KeptTactics = []string{"tactic.basic", "tactic.core"}

// Ancestors returns the subgraph of id and every module it imports,
// directly or not.
func (g *Graph) Ancestors(id string) (*Graph, error) {
	if _, err := g.Node(id); err != nil {
		return nil, err
	}
	return g.Subgraph(g.reach(id, func(n *Node) []string { return n.InEdges })), nil
}

// Descendants returns the subgraph of id and every module importing it,
// directly or not.
func (g *Graph) Descendants(id string) (*Graph, error) {
	if _, err := g.Node(id); err != nil {
		return nil, err
	}
	return g.Subgraph(g.reach(id, func(n *Node) []string { return n.OutEdges })), nil
}

// Path returns the modules lying between start and end: those importing
// start and imported by end.
func (g *Graph) Path(start, end string) (*Graph, error) {
	if _, err := g.Node(start); err != nil {
		return nil, err
	}
	if _, err := g.Node(end); err != nil {
		return nil, err
	}
	down := g.reach(start, func(n *Node) []string { return n.OutEdges })
	up := g.reach(end, func(n *Node) []string { return n.InEdges })
	keep := make(map[string]bool)
	for id := range down {
		if up[id] {
			keep[id] = true
		}
	}
	return g.Subgraph(keep), nil
}

func (g *Graph) reach(from string, next func(*Node) []string) map[string]bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, id := range next(node) {
			if seen[id] {
				continue
			}
			seen[id] = true
			queue = append(queue, id)
		}
	}
	return seen
}

// ExcludeTactics drops the tactic.* and meta.* modules except KeptTactics.
// Each dropped module's importers are linked directly to what it imports,
// so transitive dependencies are kept.
func (g *Graph) ExcludeTactics() *Graph {
	h := g.Clone()
	for _, id := range h.IDs() {
		if !isTactic(id) {
			continue
		}
		node := h.Nodes[id]
		parents := append([]string(nil), node.InEdges...)
		children := append([]string(nil), node.OutEdges...)
		for _, parent := range parents {
			for _, child := range children {
				h.AddEdge(parent, child)
			}
		}
		h.RemoveNode(id)
	}
	h.normalizeEdges()
	return h
}

func isTactic(id string) bool {
	for _, kept := range KeptTactics {
		if id == kept {
			return false
		}
	}
	return strings.HasPrefix(id, "tactic.") || strings.HasPrefix(id, "meta.")
}

// TransitiveReduction removes every edge implied by a longer path.
func (g *Graph) TransitiveReduction() (*Graph, error) {
	order, err := g.topologicalOrder()
	if err != nil {
		return nil, err
	}

	// below[id] holds every module strictly reachable from id.
	below := make(map[string]map[string]bool, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		set := make(map[string]bool)
		for _, child := range g.Nodes[id].OutEdges {
			set[child] = true
			for d := range below[child] {
				set[d] = true
			}
		}
		below[id] = set
	}

	h := NewGraph()
	for _, id := range order {
		node := g.Nodes[id]
		copied := h.AddNode(id)
		copied.File = node.File
		copied.Status = node.Status
	}
	for _, id := range order {
		children := g.Nodes[id].OutEdges
		for _, child := range children {
			implied := false
			for _, other := range children {
				if other != child && below[other][child] {
					implied = true
					break
				}
			}
			if !implied {
				h.AddEdge(id, child)
			}
		}
	}
	h.normalizeEdges()
	return h, nil
}

// DeletePorted drops the modules whose port status is StatusYes.
func (g *Graph) DeletePorted() *Graph {
	keep := make(map[string]bool, len(g.Nodes))
	for id, node := range g.Nodes {
		if node.Status != StatusYes {
			keep[id] = true
		}
	}
	return g.Subgraph(keep)
}

// LongestPath returns the module names along a longest chain of imports,
// starting from the most basic module. Ties are broken by name.
func (g *Graph) LongestPath() ([]string, error) {
	order, err := g.topologicalOrder()
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return []string{}, nil
	}

	dist := make(map[string]int, len(order))
	pred := make(map[string]string, len(order))
	for _, id := range order {
		parents := dedupeAndSort(append([]string(nil), g.Nodes[id].InEdges...))
		for _, parent := range parents {
			if d := dist[parent] + 1; d > dist[id] {
				dist[id] = d
				pred[id] = parent
			}
		}
	}

	end := order[0]
	for _, id := range order {
		if dist[id] > dist[end] {
			end = id
		}
	}
	path := []string{end}
	for current := end; pred[current] != ""; current = pred[current] {
		path = append(path, pred[current])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// LongestPathLength returns the number of edges on LongestPath.
func (g *Graph) LongestPathLength() (int, error) {
	path, err := g.LongestPath()
	if err != nil {
		return 0, err
	}
	if len(path) == 0 {
		return 0, nil
	}
	return len(path) - 1, nil
}

// topologicalOrder sorts modules so that every module comes after the
// modules it imports. Among ready modules the smallest name goes first.
func (g *Graph) topologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	var ready []string
	for id, node := range g.Nodes {
		indegree[id] = len(node.InEdges)
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)
		added := false
		for _, next := range g.Nodes[current].OutEdges {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
				added = true
			}
		}
		if added {
			sort.Strings(ready)
		}
	}
	if len(order) != len(g.Nodes) {
		return nil, ErrCycle
	}
	return order, nil
}
