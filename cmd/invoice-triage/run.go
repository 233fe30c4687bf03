package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-triage/internal/core"
	"github.com/joseph-ayodele/invoice-triage/internal/ingest"
)

func newRunCmd(fv *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Triage every file currently in the intake folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, fv)
		},
	}
}

func runBatch(cmd *cobra.Command, fv *flagValues) error {
	cfg, err := loadConfig(cmd.Flags(), fv)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	results, stats, err := a.ingestor.IngestDirectory(a.context(ctx), cfg.Triage.Intake, cfg.Triage.SkipHidden)
	a.finish(results, stats)
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), stats, time.Since(start))
	return nil
}

func newWatchCmd(fv *flagValues) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Triage the intake folder, then keep triaging new arrivals until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), fv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			var results []core.FileResult
			stats, err := a.ingestor.Watch(a.context(ctx), ingest.WatchConfig{
				Dir:        cfg.Triage.Intake,
				Debounce:   debounce,
				SkipHidden: cfg.Triage.SkipHidden,
			}, func(r core.FileResult, _ error) {
				results = append(results, r)
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", r.Decision, r.FileName)
				if cfg.Output.MetricsFile != "" {
					if err := a.metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
						a.logger.Warn("failed to write metrics", "error", err)
					}
				}
			})
			a.finish(results, stats)
			if err != nil && ctx.Err() == nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), stats, time.Since(start))
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before new files are picked up")
	return cmd
}

func printSummary(w io.Writer, s ingest.DirStats, elapsed time.Duration) {
	fmt.Fprintf(w, "triaged %d file(s) in %s: processed=%d manual_review=%d enquiries=%d likely_duplicate=%d failed=%d skipped=%d\n",
		s.Matched, elapsed.Round(time.Millisecond),
		s.Processed, s.ManualReview, s.Enquiries, s.LikelyDuplicate, s.Failed, s.Skipped)
}
