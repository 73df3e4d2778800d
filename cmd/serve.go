package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/config"
	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/job"
	"github.com/sells-group/filings-cli/internal/normalize"
	"github.com/sells-group/filings-cli/internal/report"
	"github.com/sells-group/filings-cli/internal/server"
	"github.com/sells-group/filings-cli/internal/source"
	"github.com/sells-group/filings-cli/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the report generation API server",
	Long: `Starts the HTTP boundary and the async job core. Reports are created
as jobs, polled for status, and downloaded once completed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newPipeline assembles the shared fetch/normalize/synthesize pipeline.
func newPipeline(cfg *config.Config) (*report.Builder, error) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.SEC.UserAgent,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	sec, err := source.NewSECAdapter(cfg.SEC, f)
	if err != nil {
		return nil, err
	}
	fdic := source.NewFDICAdapter(cfg.FDIC, f)

	table, err := normalize.LoadAliasTable()
	if err != nil {
		return nil, err
	}
	return report.NewBuilder(sec, fdic, normalize.New(table)), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	journal, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "open journal")
	}
	if journal != nil {
		defer journal.Close()
		if err := journal.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate journal")
		}
	}

	mgr := job.NewManager(cfg.Jobs, builder, journal)
	if err := mgr.Restore(ctx); err != nil {
		zap.L().Warn("journal restore failed", zap.Error(err))
	}
	mgr.Start(ctx)

	return server.New(cfg.Server, mgr).ListenAndServe(ctx)
}
