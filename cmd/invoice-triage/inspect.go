package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
	"github.com/joseph-ayodele/invoice-triage/internal/extract"
	"github.com/joseph-ayodele/invoice-triage/internal/identify"
	"github.com/joseph-ayodele/invoice-triage/internal/repository"
	"github.com/joseph-ayodele/invoice-triage/internal/routing"
)

// newInspectCmd shows what triage would do with one file, without moving it or
// touching the ledger.
func newInspectCmd(fv *flagValues) *cobra.Command {
	var showText bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Extract and identify one file and print the decision it would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), fv)
			if err != nil {
				return err
			}
			logger := common.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return common.NewAppError(common.CodeFS, "inspect "+path, err)
			}

			ledger, err := repository.LoadLedger(cfg.Triage.LedgerPath, cfg.Triage.KeyPolicy, logger)
			if err != nil {
				return err
			}
			dispatcher, router := newStages(cfg, ledger, logger)

			in := routing.Input{Path: path, Supported: dispatcher.Supports(path)}
			var res extract.Result
			if in.Supported {
				res = dispatcher.Extract(cmd.Context(), path)
				in.IDs = identify.Extract(res.Text)
				in.Confidence, in.HasConfidence = res.Confidence, res.HasConfidence
			}
			decision, reason, key := router.Decide(in)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:        %s\n", filepath.Base(path))
			fmt.Fprintf(out, "format:      %s\n", orNone(string(constants.MapExtToFormat(filepath.Ext(path)))))
			if in.Supported {
				fmt.Fprintf(out, "method:      %s (%d page(s), %s)\n", orNone(res.Method), res.Pages, res.Duration.Round(time.Millisecond))
				if res.HasConfidence {
					fmt.Fprintf(out, "confidence:  %.2f\n", res.Confidence)
				}
				if res.Failed() {
					fmt.Fprintf(out, "error:       %v\n", res.Failure)
				}
				fmt.Fprintf(out, "invoice no:  %s\n", orNone(in.IDs.InvoiceNumber))
				fmt.Fprintf(out, "payer abn:   %s\n", orNone(in.IDs.PayerID))
				fmt.Fprintf(out, "ledger key:  %s\n", orNone(key))
			}
			fmt.Fprintf(out, "decision:    %s (%s)\n", decision, reason)
			if showText && in.Supported {
				fmt.Fprintf(out, "\n%s\n", res.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showText, "text", false, "also print the extracted text")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
