package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/model"
)

var generateCmd = &cobra.Command{
	Use:   "generate <ticker>",
	Short: "Generate a 10-Q financial statement workbook for one ticker",
	Long: `Fetches the company's 10-Q XBRL facts from SEC EDGAR, normalizes them
into canonical statements, and writes a multi-sheet XLSX workbook.

Example:
  filings-cli generate AAPL
  filings-cli generate BRK.B --out ./workbooks`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("out", "o", ".", "Output directory")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outDir, _ := cmd.Flags().GetString("out")

	builder, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	art, err := builder.Build(ctx, model.KindSEC, model.JobParams{Ticker: args[0]}, func(stage string) {
		zap.L().Info("generate: " + stage)
	})
	if err != nil {
		return eris.Wrapf(err, "generate %s", args[0])
	}

	path := filepath.Join(outDir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return eris.Wrap(err, "write workbook")
	}

	fmt.Printf("Wrote %s (%d bytes)\n", path, len(art.Data))
	return nil
}
