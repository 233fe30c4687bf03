package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-triage/internal/common"
	"github.com/joseph-ayodele/invoice-triage/internal/core"
	"github.com/joseph-ayodele/invoice-triage/internal/export"
	"github.com/joseph-ayodele/invoice-triage/internal/extract"
	"github.com/joseph-ayodele/invoice-triage/internal/ingest"
	"github.com/joseph-ayodele/invoice-triage/internal/metrics"
	"github.com/joseph-ayodele/invoice-triage/internal/ocr"
	"github.com/joseph-ayodele/invoice-triage/internal/repository"
	"github.com/joseph-ayodele/invoice-triage/internal/routing"
)

// app is one fully wired triage pipeline.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	runID    string
	ledger   *repository.Ledger
	journal  repository.JournalRepository
	metrics  *metrics.TriageMetrics
	ingestor *ingest.Ingestor
	reports  *export.Service
}

func newApp(ctx context.Context, cfg *common.Config, logOut io.Writer) (*app, error) {
	runID := common.NewRunID()
	logger := common.NewLogger(logOut, cfg.Log.Level, cfg.Log.Format).With("run_id", runID)
	slog.SetDefault(logger)

	for _, dir := range cfg.Triage.Folders() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, common.NewAppError(common.CodeFS, "create folder "+dir, err)
		}
	}

	ledger, err := repository.LoadLedger(cfg.Triage.LedgerPath, cfg.Triage.KeyPolicy, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		runID:   runID,
		ledger:  ledger,
		metrics: metrics.NewTriageMetrics(),
		reports: export.NewService(logger),
	}

	var journal core.Journal
	if cfg.Output.JournalDSN != "" {
		j, err := repository.OpenJournal(ctx, repository.Config{
			DSN:             cfg.Output.JournalDSN,
			MaxConns:        4,
			MinConns:        0,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     5 * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.journal, journal = j, j
		logger.Info("decision journal open", "dialect", j.Dialect())
	}

	dispatcher, router := newStages(cfg, ledger, logger)
	proc := core.NewProcessor(logger, dispatcher, router, journal, a.metrics)
	a.ingestor = ingest.NewIngestor(proc, logger)

	logger.Info("triage configured",
		"intake", cfg.Triage.Intake,
		"ledger", ledger.Path(),
		"ledger_lines", ledger.Len(),
		"key_policy", ledger.Policy(),
		"duplicate_action", cfg.Triage.EffectiveDuplicateAction(),
		"confidence_threshold", cfg.Triage.ConfidenceThreshold,
		"journal", cfg.Output.JournalDSN != "",
	)
	return a, nil
}

// newStages builds the extractor dispatcher and router from cfg. run, watch and
// inspect all go through here.
func newStages(cfg *common.Config, ledger routing.Ledger, logger *slog.Logger) (*extract.Dispatcher, *routing.Router) {
	images := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           cfg.OCR.PSM,
		OEM:           cfg.OCR.OEM,
		Timeout:       cfg.OCR.Timeout,
	}, logger)
	router := routing.NewRouter(ledger, routing.Options{
		Folders:             cfg.Triage.Folders(),
		ConfidenceThreshold: cfg.Triage.ConfidenceThreshold,
		DuplicateAction:     cfg.Triage.EffectiveDuplicateAction(),
	}, logger)
	return extract.NewDefaultDispatcher(images, logger), router
}

func (a *app) context(ctx context.Context) context.Context {
	return common.WithRunID(ctx, a.runID)
}

// finish writes the optional report and metrics textfile. Failures are logged; the
// files have already been routed.
func (a *app) finish(results []core.FileResult, stats ingest.DirStats) {
	a.metrics.MarkRunFinished(time.Now())
	if path := a.cfg.Output.ReportPath; path != "" {
		if err := a.reports.WriteRunReport(path, a.runID, results, stats); err != nil {
			a.logger.Error("failed to write run report", "path", path, "error", err)
		} else {
			a.logger.Info("run report written", "path", path)
		}
	}
	if path := a.cfg.Output.MetricsFile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Error("failed to write metrics", "path", path, "error", err)
		}
	}
}

func (a *app) Close() {
	if a.journal != nil {
		a.journal.Close()
	}
}
