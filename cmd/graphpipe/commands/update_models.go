package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/graphpipe/graphpipe/cmd/graphpipe/ui"
	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/pipeline"
)

var (
	updateForce      bool
	updateSkipVision bool
)

var updateModelsCmd = &cobra.Command{
	Use:   "update-models",
	Short: "Refresh the model catalog and verify vision capabilities",
	Long: `Fetch the provider's model listing, merge it into the local catalog, and
probe every model whose vision capability is still unverified. Probed
verdicts are persisted immediately, so an interrupted run resumes where it
left off.`,
	RunE: runUpdateModels,
}

func init() {
	updateModelsCmd.Flags().BoolVar(&updateForce, "force", false, "refresh even if the catalog is still fresh")
	updateModelsCmd.Flags().BoolVar(&updateSkipVision, "skip-vision-check", false, "skip probing unverified models")
	rootCmd.AddCommand(updateModelsCmd)
}

// attachProbeProgress wires a progress bar into the prober.
func attachProbeProgress(p *pipeline.Pipeline) {
	var bar *ui.ProgressBar
	p.SetProbeProgress(func(done, total int, modelID string, verdict catalog.VisionSupport) {
		if bar == nil {
			bar = ui.NewProgressBar(int64(total), "Probing vision capability")
		}
		bar.Set(int64(done))
		if done == total {
			bar.Finish()
		}
	})
}

func runUpdateModels(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	attachProbeProgress(p)

	ui.Section("Model Catalog Update")
	cat, err := p.EnsureCatalog(context.Background(), pipeline.CatalogOptions{
		Force:           updateForce,
		SkipVisionCheck: updateSkipVision,
	})
	if err != nil {
		return err
	}

	supported, unsupported, unknown := 0, 0, 0
	for _, d := range cat.Descriptors() {
		switch d.Vision {
		case catalog.VisionSupported:
			supported++
		case catalog.VisionUnsupported:
			unsupported++
		default:
			unknown++
		}
	}

	ui.Success("✓ Catalog updated: %d models", cat.Len())
	ui.Info("Vision supported: %d, unsupported: %d, unverified: %d", supported, unsupported, unknown)
	if unknown > 0 && updateSkipVision {
		ui.Warn("Run again without --skip-vision-check to verify the remaining models.")
	}
	return nil
}
