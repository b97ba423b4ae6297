package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphpipe/graphpipe/cmd/graphpipe/ui"
	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/pipeline"
)

var (
	runPDFPath    string
	runPage       int
	runImagePath  string
	runOutputPath string
	runForce      bool
	runSkipVision bool
	runDedupe     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract a graph from a PDF and generate its animation script",
	Long: `Render the requested PDF page (or use an already-extracted image), ask a
vision-capable model for the graph structure, and write a manim script that
animates the graph and its adjacency matrix.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPDFPath, "pdf", "p", "", "path to the PDF file")
	runCmd.Flags().IntVar(&runPage, "page", 0, "1-based page number (default: first page)")
	runCmd.Flags().StringVarP(&runImagePath, "image", "i", "", "path to an already-extracted diagram image")
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "output path for the manim script")
	runCmd.Flags().BoolVar(&runForce, "force", false, "refresh the model catalog even if fresh")
	runCmd.Flags().BoolVar(&runSkipVision, "skip-vision-check", false, "skip probing unverified models")
	runCmd.Flags().BoolVar(&runDedupe, "dedupe-edges", false, "collapse duplicate edges before rendering")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runPDFPath == "" && runImagePath == "" {
		return fmt.Errorf("either --pdf or --image is required")
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	attachProbeProgress(p)

	ui.Section("Graph Extraction")
	if runImagePath != "" {
		ui.Info("Image: %s", runImagePath)
	} else {
		ui.Info("PDF: %s", runPDFPath)
		if runPage > 0 {
			ui.Info("Page: %d", runPage)
		}
	}

	spin := ui.NewSpinner("Extracting graph structure...")
	spin.Start()
	start := time.Now()
	res, err := p.Run(context.Background(), pipeline.RunOptions{
		PDFPath:          runPDFPath,
		Page:             runPage,
		ImagePath:        runImagePath,
		OutputPath:       runOutputPath,
		DeduplicateEdges: runDedupe,
		Catalog: pipeline.CatalogOptions{
			Force:           runForce,
			SkipVisionCheck: runSkipVision,
		},
	})
	spin.Stop()
	if err != nil {
		return describeFailure(err)
	}

	ui.Success("✓ Extraction completed in %s", ui.FormatDuration(time.Since(start)))
	ui.Newline()
	ui.Section("Result")
	ui.Info("Model:  %s", res.ModelID)
	ui.Info("Nodes:  %s", strings.Join(res.Graph.Nodes, ", "))
	ui.Info("Edges:  %s", formatEdges(res.Graph.Edges))
	ui.Newline()
	printMatrix(res.Graph.Nodes, res.Matrix)
	ui.Newline()
	ui.Info("Animation script: %s", res.ScriptPath)
	ui.Info("Render it with:   manim -pql %s GraphToAdjacency", res.ScriptPath)
	return nil
}

func formatEdges(edges []domain.Edge) string {
	if len(edges) == 0 {
		return "(none)"
	}
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = e.Source + "-" + e.Target
	}
	return strings.Join(parts, ", ")
}

func printMatrix(nodes []string, matrix [][]int) {
	headers := append([]string{""}, nodes...)
	rows := make([][]string, len(matrix))
	for i, row := range matrix {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, nodes[i])
		for _, v := range row {
			cells = append(cells, fmt.Sprintf("%d", v))
		}
		rows[i] = cells
	}
	ui.Table(headers, rows)
}

// describeFailure adds a hint for the failure classes a user can act on.
func describeFailure(err error) error {
	switch {
	case domain.IsNoEligibleModel(err):
		ui.Error("No model in the catalog can handle this request.")
		ui.Error("Try \"graphpipe update-models --force\" or raise the cost ceiling.")
	case domain.IsParse(err):
		ui.Error("The model's answer did not match the expected format.")
		if raw := domain.RawOutput(err); raw != "" {
			ui.Error("Raw answer:\n%s", raw)
		}
	}
	return err
}
