package animate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/observability"
)

func sampleGraph() *domain.GraphStructure {
	return domain.NewGraphStructure(
		[]string{"A", "B", "C"},
		[]domain.Edge{
			{Source: "A", Target: "B"},
			{Source: "B", Target: "C"},
		},
	)
}

func TestScriptContents(t *testing.T) {
	script, err := Script(sampleGraph())
	require.NoError(t, err)

	assert.Contains(t, script, "from manim import *")
	assert.Contains(t, script, "class GraphToAdjacency(Scene):")
	assert.Contains(t, script, `vertices = ["A", "B", "C"]`)
	assert.Contains(t, script, `edges = [("A", "B"), ("B", "C")]`)
	assert.Contains(t, script, "matrix_data = [[0, 1, 0], [1, 0, 1], [0, 1, 0]]")
	assert.Contains(t, script, `layout="circular"`)
}

func TestScriptEscapesLabels(t *testing.T) {
	graph := domain.NewGraphStructure(
		[]string{`say "hi"`},
		nil,
	)
	script, err := Script(graph)
	require.NoError(t, err)
	assert.Contains(t, script, `vertices = ["say \"hi\""]`)
}

func TestScriptRejectsInvalidGraph(t *testing.T) {
	graph := domain.NewGraphStructure(
		[]string{"A"},
		[]domain.Edge{{Source: "A", Target: "Z"}},
	)
	_, err := Script(graph)
	require.Error(t, err)
}

func TestWriteScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph_manim.py")
	require.NoError(t, WriteScript(sampleGraph(), path, observability.Nop()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "class GraphToAdjacency(Scene):")
}
