package domain

import "fmt"

// PageImage represents a single rendered PDF page
type PageImage struct {
	PageNumber int
	Bytes      []byte
	MIMEType   string
	Width      int
	Height     int
}

// Edge is a directed pair of node labels. The pipeline treats graphs as
// undirected when building adjacency matrices, but edge order as recognized
// from the diagram is preserved.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphStructure is the vertex/edge topology recovered from a diagram.
// Nodes keep first-occurrence order; duplicates collapse on construction.
// Self-loops and duplicate edges are permitted unless the caller opts into
// DeduplicateEdges.
type GraphStructure struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// NewGraphStructure builds a GraphStructure, collapsing duplicate node
// labels while preserving first-occurrence order.
func NewGraphStructure(nodes []string, edges []Edge) *GraphStructure {
	seen := make(map[string]bool, len(nodes))
	unique := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}
	return &GraphStructure{Nodes: unique, Edges: edges}
}

// HasNode reports whether label is a declared node.
func (g *GraphStructure) HasNode(label string) bool {
	for _, n := range g.Nodes {
		if n == label {
			return true
		}
	}
	return false
}

// Validate checks that every edge endpoint is a declared node. An edge
// referencing an undeclared node is an error, never silently repaired.
func (g *GraphStructure) Validate() error {
	declared := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n == "" {
			return ValidationError("empty node label", nil)
		}
		declared[n] = true
	}
	for _, e := range g.Edges {
		if !declared[e.Source] {
			return ValidationError(fmt.Sprintf("edge references undeclared node %q", e.Source), nil)
		}
		if !declared[e.Target] {
			return ValidationError(fmt.Sprintf("edge references undeclared node %q", e.Target), nil)
		}
	}
	return nil
}

// DeduplicateEdges removes duplicate edges in place, keeping the first
// occurrence. An edge and its reverse are distinct.
func (g *GraphStructure) DeduplicateEdges() {
	seen := make(map[Edge]bool, len(g.Edges))
	out := g.Edges[:0]
	for _, e := range g.Edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	g.Edges = out
}

// AdjacencyMatrix returns the undirected adjacency matrix in node order.
// Self-loops set the diagonal entry.
func (g *GraphStructure) AdjacencyMatrix() [][]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n] = i
	}
	m := make([][]int, len(g.Nodes))
	for i := range m {
		m[i] = make([]int, len(g.Nodes))
	}
	for _, e := range g.Edges {
		i, iOK := idx[e.Source]
		j, jOK := idx[e.Target]
		if !iOK || !jOK {
			continue
		}
		m[i][j] = 1
		m[j][i] = 1
	}
	return m
}
