package commands

// Chart command: renders the top holders of an existing export as PNG

import (
	"fmt"

	"dog-holders/internal/features/tg_charts"
	"dog-holders/internal/infra/fs"
	"dog-holders/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newChartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart [csv_file]",
		Short: "Render a top holders bar chart from a holders CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runChart,
	}
	cmd.Flags().String("out", "holders.png", "Output PNG path")
	cmd.Flags().Int("top", tg_charts.DefaultTopN, "Number of holders to draw")
	return cmd
}

func runChart(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	csvPath := cfg.Output.File
	if len(args) == 1 {
		csvPath = args[0]
	}
	out, _ := cmd.Flags().GetString("out")
	top, _ := cmd.Flags().GetInt("top")

	rows, err := fs.ReadHoldersCSV(csvPath)
	if err != nil {
		return err
	}
	if err := tg_charts.GenerateHoldersChart(rows, out, top); err != nil {
		return fmt.Errorf("failed to render chart from %s: %w", csvPath, err)
	}

	log.LogSuccess("Holders chart saved", zap.String("csv", csvPath), zap.String("out", out))
	cmd.Printf("Chart saved to %s\n", out)
	return nil
}
