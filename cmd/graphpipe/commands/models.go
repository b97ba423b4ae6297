package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphpipe/graphpipe/cmd/graphpipe/ui"
	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/observability"
	"github.com/graphpipe/graphpipe/internal/selector"
)

var modelsVisionOnly bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the catalogued models",
	Long:  "List the local model catalog with context windows, costs and verified vision capability, in selection order.",
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsVisionOnly, "vision", false, "only models with verified vision support")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	store := catalog.NewStore(cfg.Catalog.Path, cfg.Catalog.Staleness.Std(), observability.Nop())
	cat, expired, err := store.Load()
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		ui.Warn("Catalog is empty. Run \"graphpipe update-models\" first.")
		return nil
	}
	if expired {
		ui.Warn("Catalog is older than %s; consider \"graphpipe update-models\".", cfg.Catalog.Staleness)
	}

	ceiling, err := cfg.MaxCompletionCost()
	if err != nil {
		return err
	}
	req := selector.Requirement{
		NeedsVision:       modelsVisionOnly,
		MaxCompletionCost: ceiling,
		MinContext:        cfg.Selection.MinContext,
	}

	rows := make([][]string, 0, cat.Len())
	for _, d := range selector.Rank(cat, req) {
		probed := ""
		if d.VisionProbed {
			probed = " (probed)"
		}
		rows = append(rows, []string{
			d.ID,
			fmt.Sprintf("%d", d.MaxContext),
			d.CostPerMContext.String(),
			d.CostPerMCompletion.String(),
			string(d.Vision) + probed,
		})
	}

	ui.Table([]string{"Model", "Context", "Cost/ctx", "Cost/out", "Vision"}, rows)
	return nil
}
