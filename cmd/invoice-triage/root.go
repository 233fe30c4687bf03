package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
)

// flagValues holds the command-line overrides; only flags the user set are applied.
type flagValues struct {
	configPath string

	intake, processed, manualReview, enquiries, duplicates, ledger string
	threshold                                                      float64
	keyPolicy, duplicateAction                                     string
	skipHidden                                                     bool

	tesseract, lang, tessdata string
	ocrTimeout                time.Duration

	journalDSN, reportPath, metricsFile string
	logLevel, logFormat                 string
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&flagValues{})
}

func newRootCmdWith(fv *flagValues) *cobra.Command {
	root := &cobra.Command{
		Use:   "invoice-triage",
		Short: "Sort an intake folder of invoices into processed, review, enquiry and duplicate folders",
		Long: `Scans the intake folder once, extracts text from PDF, DOCX, XLSX and image files,
finds the invoice number and payer ABN, checks them against the processed-invoice
ledger, and moves each file to the folder for its outcome.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, fv)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", os.Getenv("TRIAGE_CONFIG"), "YAML config file")
	pf.StringVar(&fv.intake, "intake", "", "intake folder")
	pf.StringVar(&fv.processed, "processed", "", "folder for accepted invoices")
	pf.StringVar(&fv.manualReview, "manual-review", "", "folder for documents needing review")
	pf.StringVar(&fv.enquiries, "enquiries", "", "folder for unsupported files")
	pf.StringVar(&fv.duplicates, "duplicates", "", "folder for likely duplicates")
	pf.StringVar(&fv.ledger, "ledger", "", "processed-invoice ledger file")
	pf.Float64Var(&fv.threshold, "threshold", constants.DefaultConfidenceThreshold, "OCR confidence below which scans go to manual review")
	pf.StringVar(&fv.keyPolicy, "key-policy", "", "duplicate key: composite (ABN + invoice) or invoice")
	pf.StringVar(&fv.duplicateAction, "duplicate-action", "", "move or skip likely duplicates (default depends on key policy)")
	pf.BoolVar(&fv.skipHidden, "skip-hidden", false, "ignore dot-files in the intake folder")
	pf.StringVar(&fv.tesseract, "tesseract", "", "tesseract binary")
	pf.StringVar(&fv.lang, "lang", "", "tesseract language")
	pf.StringVar(&fv.tessdata, "tessdata-dir", "", "tesseract tessdata directory")
	pf.DurationVar(&fv.ocrTimeout, "ocr-timeout", 0, "per-image OCR timeout")
	pf.StringVar(&fv.journalDSN, "journal", "", "decision journal DSN (sqlite path or postgres:// URL)")
	pf.StringVar(&fv.reportPath, "report", "", "write an XLSX run report to this path")
	pf.StringVar(&fv.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	pf.StringVar(&fv.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&fv.logFormat, "log-format", "", "text or json")

	root.AddCommand(
		newRunCmd(fv),
		newWatchCmd(fv),
		newHistoryCmd(fv),
		newInspectCmd(fv),
	)
	return root
}

// loadConfig layers defaults, environment, the optional YAML file and flags, then
// validates the result.
func loadConfig(flags *pflag.FlagSet, fv *flagValues) (*common.Config, error) {
	cfg := common.LoadConfig()
	if fv.configPath != "" {
		if err := cfg.LoadFile(fv.configPath); err != nil {
			return nil, err
		}
	}

	str := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	str("intake", &cfg.Triage.Intake, fv.intake)
	str("processed", &cfg.Triage.Processed, fv.processed)
	str("manual-review", &cfg.Triage.ManualReview, fv.manualReview)
	str("enquiries", &cfg.Triage.Enquiries, fv.enquiries)
	str("duplicates", &cfg.Triage.Duplicates, fv.duplicates)
	str("ledger", &cfg.Triage.LedgerPath, fv.ledger)
	if flags.Changed("threshold") {
		cfg.Triage.ConfidenceThreshold = fv.threshold
	}
	if flags.Changed("key-policy") {
		cfg.Triage.KeyPolicy = constants.KeyPolicy(fv.keyPolicy)
	}
	if flags.Changed("duplicate-action") {
		cfg.Triage.DuplicateAction = constants.DuplicateAction(fv.duplicateAction)
	}
	if flags.Changed("skip-hidden") {
		cfg.Triage.SkipHidden = fv.skipHidden
	}
	str("tesseract", &cfg.OCR.Tesseract, fv.tesseract)
	str("lang", &cfg.OCR.TesseractLang, fv.lang)
	str("tessdata-dir", &cfg.OCR.TessdataDir, fv.tessdata)
	if flags.Changed("ocr-timeout") {
		cfg.OCR.Timeout = fv.ocrTimeout
	}
	str("journal", &cfg.Output.JournalDSN, fv.journalDSN)
	str("report", &cfg.Output.ReportPath, fv.reportPath)
	str("metrics-file", &cfg.Output.MetricsFile, fv.metricsFile)
	str("log-level", &cfg.Log.Level, fv.logLevel)
	str("log-format", &cfg.Log.Format, fv.logFormat)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
