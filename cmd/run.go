package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arremate/ingestor/internal/app"
	"github.com/arremate/ingestor/internal/config"
)

// newRunCmd creates the 'run' subcommand, which executes one ingestion run
// across all configured sources.
func newRunCmd() *cobra.Command {
	var (
		mode   string
		budget int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Executes one ingestion run",
		Long: `Discovers candidate documents from every configured source index,
fetches and processes them, and writes canonical records to the valid
sinks. Failures land in quarantine; the run summary is printed when done.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if mode != "" {
				cfg.Run.Mode = mode
			}
			if cmd.Flags().Changed("budget") {
				cfg.Run.DocumentBudget = budget
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runIngestion(cmd.Context(), &cfg)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "run mode: incremental or full (overrides config)")
	cmd.Flags().IntVar(&budget, "budget", 0, "document budget for this run, 0 for unlimited (overrides config)")
	return cmd
}

func runIngestion(ctx context.Context, cfg *config.Config) error {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.Close(ctx)

	report, err := a.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run ingestion: %w", err)
	}

	a.Logger().Info("ingestion complete",
		zap.String("run_id", report.RunID),
		zap.Int("discovered", report.Discovered),
		zap.Int("valid", report.Valid),
		zap.Int("not_sellable", report.NotSellable),
		zap.Int("drafts", report.Drafts),
		zap.Int("rejected", report.Rejected),
		zap.Int("fetch_failures", report.FetchFailures),
	)
	return nil
}
