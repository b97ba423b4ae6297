// Package extract turns a diagram image into a graph structure via a
// vision-capable model, and parses the model's textual answer.
package extract

import (
	"fmt"
	"strings"

	"github.com/graphpipe/graphpipe/internal/domain"
)

const (
	nodesPrefix = "nodes:"
	edgesPrefix = "edges:"
)

// stripCodeFences removes a markdown code fence wrapper, with or without a
// language tag, if the whole payload is fenced.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// drop the language tag line
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseGraph parses a model answer of the form:
//
//	Nodes: A, B, C
//	Edges: A-B, B-C
//
// The answer may be wrapped in a markdown code fence. Anything else (a
// missing line, extra prose, a malformed edge token, an edge endpoint that
// is not a declared node) is a parse failure carrying the raw answer for
// diagnosis. Node labels may not contain "-".
func ParseGraph(raw string) (*domain.GraphStructure, error) {
	body := stripCodeFences(raw)

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 {
		return nil, domain.ParseError(
			fmt.Sprintf("expected exactly a Nodes line and an Edges line, got %d lines", len(lines)), raw)
	}
	if !strings.HasPrefix(strings.ToLower(lines[0]), nodesPrefix) {
		return nil, domain.ParseError("first line does not start with \"Nodes:\"", raw)
	}
	if !strings.HasPrefix(strings.ToLower(lines[1]), edgesPrefix) {
		return nil, domain.ParseError("second line does not start with \"Edges:\"", raw)
	}

	nodes := splitList(lines[0][len(nodesPrefix):])

	var edges []domain.Edge
	for _, token := range splitList(lines[1][len(edgesPrefix):]) {
		parts := strings.Split(token, "-")
		if len(parts) != 2 {
			return nil, domain.ParseError(fmt.Sprintf("malformed edge %q", token), raw)
		}
		src, dst := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if src == "" || dst == "" {
			return nil, domain.ParseError(fmt.Sprintf("malformed edge %q", token), raw)
		}
		edges = append(edges, domain.Edge{Source: src, Target: dst})
	}

	graph := domain.NewGraphStructure(nodes, edges)
	if err := graph.Validate(); err != nil {
		return nil, domain.ParseError(err.Error(), raw)
	}
	return graph, nil
}
