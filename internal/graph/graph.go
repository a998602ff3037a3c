// Package graph holds the import graph of a Lean project, where an edge
// runs from an imported module to the module importing it.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownNode is returned when a module is not part of the graph.
	ErrUnknownNode = errors.New("module is not in the import graph")

	// ErrCycle is returned by operations that need an acyclic graph.
	ErrCycle = errors.New("import graph has a cycle")
)

// Node is one module of the project.
type Node struct {
	ID       string // dotted module name, e.g. data.nat.basic
	File     string // slash-separated path relative to the source directory
	OutEdges []string
	InEdges  []string
	Status   *FileStatus
}

// Graph is a directed graph of modules keyed by module name.
type Graph struct {
	Nodes map[string]*Node
}

// NewGraph creates a new empty graph
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode returns the node id, creating it when missing.
func (g *Graph) AddNode(id string) *Node {
	if node, ok := g.Nodes[id]; ok {
		return node
	}
	node := &Node{ID: id, OutEdges: make([]string, 0), InEdges: make([]string, 0)}
	g.Nodes[id] = node
	return node
}

// AddEdge adds from -> to, creating missing nodes. Self edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	if from == to {
		g.AddNode(from)
		return
	}
	src := g.AddNode(from)
	dst := g.AddNode(to)
	if containsID(src.OutEdges, to) {
		return
	}
	src.OutEdges = append(src.OutEdges, to)
	dst.InEdges = append(dst.InEdges, from)
}

// HasEdge reports whether from -> to is an edge.
func (g *Graph) HasEdge(from, to string) bool {
	node, ok := g.Nodes[from]
	return ok && containsID(node.OutEdges, to)
}

// RemoveNode deletes id and every edge touching it.
func (g *Graph) RemoveNode(id string) {
	node, ok := g.Nodes[id]
	if !ok {
		return
	}
	for _, out := range node.OutEdges {
		if target := g.Nodes[out]; target != nil {
			target.InEdges = removeID(target.InEdges, id)
		}
	}
	for _, in := range node.InEdges {
		if source := g.Nodes[in]; source != nil {
			source.OutEdges = removeID(source.OutEdges, id)
		}
	}
	delete(g.Nodes, id)
}

// Node returns the node for id or ErrUnknownNode.
func (g *Graph) Node(id string) (*Node, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return node, nil
}

// IDs returns all module names, sorted.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edge is a directed pair of module names.
type Edge struct {
	From string
	To   string
}

// Edges returns every edge, sorted by source then target.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, id := range g.IDs() {
		for _, to := range g.Nodes[id].OutEdges {
			out = append(out, Edge{From: id, To: to})
		}
	}
	return out
}

// Size returns the number of modules.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// Subgraph copies the nodes in keep and the edges between them.
func (g *Graph) Subgraph(keep map[string]bool) *Graph {
	h := NewGraph()
	for id := range keep {
		node, ok := g.Nodes[id]
		if !ok {
			continue
		}
		copied := h.AddNode(id)
		copied.File = node.File
		copied.Status = node.Status
	}
	for id := range h.Nodes {
		for _, to := range g.Nodes[id].OutEdges {
			if _, ok := h.Nodes[to]; ok {
				h.AddEdge(id, to)
			}
		}
	}
	h.normalizeEdges()
	return h
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	all := make(map[string]bool, len(g.Nodes))
	for id := range g.Nodes {
		all[id] = true
	}
	return g.Subgraph(all)
}

func (g *Graph) normalizeEdges() {
	for _, node := range g.Nodes {
		node.OutEdges = dedupeAndSort(node.OutEdges)
		node.InEdges = dedupeAndSort(node.InEdges)
	}
}

func dedupeAndSort(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func containsID(values []string, id string) bool {
	for _, v := range values {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(values []string, id string) []string {
	out := values[:0]
	for _, v := range values {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
