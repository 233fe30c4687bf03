package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

// Config holds all application configuration
type Config struct {
	Triage TriageConfig
	OCR    OCRConfig
	Log    LogConfig
	Output OutputConfig
}

// TriageConfig holds the folder layout and routing policy.
type TriageConfig struct {
	Intake       string
	Processed    string
	ManualReview string
	Enquiries    string
	Duplicates   string
	LedgerPath   string

	ConfidenceThreshold float64
	KeyPolicy           constants.KeyPolicy
	DuplicateAction     constants.DuplicateAction // empty -> constants.DefaultDuplicateAction(KeyPolicy)
	SkipHidden          bool
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	PSM           int
	OEM           int
	Timeout       time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// OutputConfig holds the optional side outputs of a run. Empty values disable them.
type OutputConfig struct {
	JournalDSN  string
	ReportPath  string
	MetricsFile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Triage: TriageConfig{
			Intake:              getEnv("TRIAGE_INTAKE_DIR", "test_emails"),
			Processed:           getEnv("TRIAGE_PROCESSED_DIR", "processed"),
			ManualReview:        getEnv("TRIAGE_MANUAL_REVIEW_DIR", "manual_review"),
			Enquiries:           getEnv("TRIAGE_ENQUIRIES_DIR", "enquiries"),
			Duplicates:          getEnv("TRIAGE_DUPLICATES_DIR", "likely_duplicates"),
			LedgerPath:          getEnv("TRIAGE_LEDGER_PATH", "processed_invoices.txt"),
			ConfidenceThreshold: getEnvAsFloat64("TRIAGE_CONFIDENCE_THRESHOLD", constants.DefaultConfidenceThreshold),
			KeyPolicy:           constants.KeyPolicy(getEnv("TRIAGE_KEY_POLICY", string(constants.KeyPolicyComposite))),
			DuplicateAction:     constants.DuplicateAction(getEnv("TRIAGE_DUPLICATE_ACTION", "")),
			SkipHidden:          getEnvAsBool("TRIAGE_SKIP_HIDDEN", false),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			PSM:           getEnvAsInt("OCR_PSM", 0),
			OEM:           getEnvAsInt("OCR_OEM", 0),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Output: OutputConfig{
			JournalDSN:  getEnv("TRIAGE_JOURNAL_DSN", ""),
			ReportPath:  getEnv("TRIAGE_REPORT_PATH", ""),
			MetricsFile: getEnv("TRIAGE_METRICS_FILE", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// EffectiveDuplicateAction resolves an unset duplicate action from the key policy.
func (t TriageConfig) EffectiveDuplicateAction() constants.DuplicateAction {
	if t.DuplicateAction != "" {
		return t.DuplicateAction
	}
	return constants.DefaultDuplicateAction(t.KeyPolicy)
}

// Folders returns the destination folder for every decision.
func (t TriageConfig) Folders() map[constants.Decision]string {
	return map[constants.Decision]string{
		constants.DecisionProcessed:       t.Processed,
		constants.DecisionManualReview:    t.ManualReview,
		constants.DecisionEnquiries:       t.Enquiries,
		constants.DecisionLikelyDuplicate: t.Duplicates,
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("intake", c.Triage.Intake, Required).
		Field("processed", c.Triage.Processed, Required).
		Field("manual_review", c.Triage.ManualReview, Required).
		Field("enquiries", c.Triage.Enquiries, Required).
		Field("duplicates", c.Triage.Duplicates, Required).
		Field("ledger_path", c.Triage.LedgerPath, Required).
		Field("confidence_threshold", c.Triage.ConfidenceThreshold, Between(0, 100)).
		Field("key_policy", string(c.Triage.KeyPolicy),
			OneOf(string(constants.KeyPolicyComposite), string(constants.KeyPolicyInvoice))).
		Field("log_level", strings.ToLower(c.Log.Level), OneOf("debug", "info", "warn", "warning", "error")).
		Field("log_format", strings.ToLower(c.Log.Format), OneOf("text", "json"))
	if c.Triage.DuplicateAction != "" {
		v.Field("duplicate_action", string(c.Triage.DuplicateAction),
			OneOf(string(constants.DuplicateActionMove), string(constants.DuplicateActionSkip)))
	}
	if err := v.Error(); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", err)
	}
	return nil
}
