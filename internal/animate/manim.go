// Package animate renders a manim scene script that draws the extracted
// graph and its adjacency matrix.
package animate

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/observability"
)

// sceneTemplate produces a self-contained manim script: build the graph
// with a circular layout, highlight each edge, then fade in the adjacency
// matrix and highlight the matrix cells for each edge.
var sceneTemplate = template.Must(template.New("scene").Parse(`from manim import *

class GraphToAdjacency(Scene):
    def construct(self):
        vertices = {{.Vertices}}
        edges = {{.EdgeList}}
        g = Graph(vertices, edges, layout="circular")
        self.play(Create(g))
        self.wait(1)

        edge_objs = [g.edges[e] for e in edges]
        for eo in edge_objs:
            self.play(eo.animate.set_color(RED), run_time=0.5)
            self.wait(0.2)
            self.play(eo.animate.set_color(WHITE), run_time=0.2)

        self.wait(0.5)

        matrix_data = {{.Matrix}}
        mat = IntegerMatrix(matrix_data)
        mat.next_to(g, RIGHT, buff=1)
        self.play(FadeIn(mat))
        self.wait(1)

        for a, b in edges:
            i = vertices.index(a)
            j = vertices.index(b)
            entry1 = mat.get_entries()[i * len(vertices) + j]
            entry2 = mat.get_entries()[j * len(vertices) + i]
            self.play(entry1.animate.set_color(YELLOW), entry2.animate.set_color(YELLOW), run_time=0.5)
            self.wait(0.2)
            self.play(entry1.animate.set_color(WHITE), entry2.animate.set_color(WHITE), run_time=0.2)
        self.wait(2)
`))

type sceneData struct {
	Vertices string
	EdgeList string
	Matrix   string
}

// pythonString quotes a label as a Python string literal.
func pythonString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func pythonStringList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = pythonString(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func pythonEdgeList(edges []domain.Edge) string {
	pairs := make([]string, len(edges))
	for i, e := range edges {
		pairs[i] = fmt.Sprintf("(%s, %s)", pythonString(e.Source), pythonString(e.Target))
	}
	return "[" + strings.Join(pairs, ", ") + "]"
}

func pythonMatrix(m [][]int) string {
	rows := make([]string, len(m))
	for i, row := range m {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%d", v)
		}
		rows[i] = "[" + strings.Join(cells, ", ") + "]"
	}
	return "[" + strings.Join(rows, ", ") + "]"
}

// Script renders the manim scene source for the graph.
func Script(graph *domain.GraphStructure) (string, error) {
	if err := graph.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	err := sceneTemplate.Execute(&sb, sceneData{
		Vertices: pythonStringList(graph.Nodes),
		EdgeList: pythonEdgeList(graph.Edges),
		Matrix:   pythonMatrix(graph.AdjacencyMatrix()),
	})
	if err != nil {
		return "", domain.ConversionError("rendering animation script", err)
	}
	return sb.String(), nil
}

// WriteScript renders the scene and writes it to path.
func WriteScript(graph *domain.GraphStructure, path string, logger *observability.Logger) error {
	script, err := Script(graph)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("writing %s", path), err)
	}
	logger.WithComponent("animate").Info().
		Str("path", path).
		Int("nodes", len(graph.Nodes)).
		Int("edges", len(graph.Edges)).
		Msg("animation script written")
	return nil
}
