package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-triage/internal/common"
	"github.com/joseph-ayodele/invoice-triage/internal/repository"
)

func newHistoryCmd(fv *flagValues) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent decisions from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), fv)
			if err != nil {
				return err
			}
			if cfg.Output.JournalDSN == "" {
				return common.NewAppError(common.CodeConfig, "history needs a journal (--journal or TRIAGE_JOURNAL_DSN)", common.ErrInvalidInput)
			}
			logger := common.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

			j, err := repository.OpenJournal(cmd.Context(), repository.Config{DSN: cfg.Output.JournalDSN}, logger)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DECIDED\tDECISION\tFILE\tINVOICE\tPAYER\tCONFIDENCE\tDESTINATION")
			for _, e := range entries {
				conf := "-"
				if e.HasConfidence {
					conf = fmt.Sprintf("%.1f", e.Confidence)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.DecidedAt.Local().Format("2006-01-02 15:04:05"),
					e.Decision, e.FileName, dash(e.InvoiceNumber), dash(e.PayerID), conf, dash(e.Destination))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

