package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

// fileConfig mirrors the YAML layout; nil fields leave the current value untouched.
type fileConfig struct {
	Triage struct {
		Intake              *string  `yaml:"intake"`
		Processed           *string  `yaml:"processed"`
		ManualReview        *string  `yaml:"manual_review"`
		Enquiries           *string  `yaml:"enquiries"`
		Duplicates          *string  `yaml:"duplicates"`
		LedgerPath          *string  `yaml:"ledger_path"`
		ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
		KeyPolicy           *string  `yaml:"key_policy"`
		DuplicateAction     *string  `yaml:"duplicate_action"`
		SkipHidden          *bool    `yaml:"skip_hidden"`
	} `yaml:"triage"`
	OCR struct {
		Tesseract   *string `yaml:"tesseract"`
		Lang        *string `yaml:"lang"`
		TessdataDir *string `yaml:"tessdata_dir"`
		PSM         *int    `yaml:"psm"`
		OEM         *int    `yaml:"oem"`
		Timeout     *string `yaml:"timeout"`
	} `yaml:"ocr"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
	Output struct {
		JournalDSN  *string `yaml:"journal_dsn"`
		ReportPath  *string `yaml:"report_path"`
		MetricsFile *string `yaml:"metrics_file"`
	} `yaml:"output"`
}

// ConfigFileSchema returns the JSON-Schema the YAML config file must satisfy.
func ConfigFileSchema() map[string]any {
	str := map[string]any{"type": "string"}
	section := func(props map[string]any) map[string]any {
		return map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"triage": section(map[string]any{
				"intake":               str,
				"processed":            str,
				"manual_review":        str,
				"enquiries":            str,
				"duplicates":           str,
				"ledger_path":          str,
				"confidence_threshold": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
				"key_policy": map[string]any{
					"type": "string",
					"enum": []string{string(constants.KeyPolicyComposite), string(constants.KeyPolicyInvoice)},
				},
				"duplicate_action": map[string]any{
					"type": "string",
					"enum": []string{string(constants.DuplicateActionMove), string(constants.DuplicateActionSkip)},
				},
				"skip_hidden": map[string]any{"type": "boolean"},
			}),
			"ocr": section(map[string]any{
				"tesseract":    str,
				"lang":         str,
				"tessdata_dir": str,
				"psm":          map[string]any{"type": "integer", "minimum": 0, "maximum": 13},
				"oem":          map[string]any{"type": "integer", "minimum": 0, "maximum": 3},
				"timeout":      map[string]any{"type": "string", "pattern": `^[0-9]+(\.[0-9]+)?(ns|us|ms|s|m|h)([0-9]+(\.[0-9]+)?(ns|us|ms|s|m|h))*$`},
			}),
			"log": section(map[string]any{
				"level":  map[string]any{"type": "string", "enum": []string{"debug", "info", "warn", "warning", "error"}},
				"format": map[string]any{"type": "string", "enum": []string{"text", "json"}},
			}),
			"output": section(map[string]any{
				"journal_dsn":  str,
				"report_path":  str,
				"metrics_file": str,
			}),
		},
	}
}

// LoadFile overlays the YAML file at path onto c. The document is validated against
// ConfigFileSchema before any value is applied.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "read config file", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return NewAppError(CodeConfig, "parse config file", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return NewAppError(CodeConfig, "convert config file", err)
	}
	if err := ValidateJSONAgainstSchema(ConfigFileSchema(), asJSON); err != nil {
		return NewAppError(CodeConfig, "config file "+path, fmt.Errorf("%w: %v", ErrValidation, err))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return NewAppError(CodeConfig, "decode config file", err)
	}
	return c.apply(fc)
}

func (c *Config) apply(fc fileConfig) error {
	setStr(&c.Triage.Intake, fc.Triage.Intake)
	setStr(&c.Triage.Processed, fc.Triage.Processed)
	setStr(&c.Triage.ManualReview, fc.Triage.ManualReview)
	setStr(&c.Triage.Enquiries, fc.Triage.Enquiries)
	setStr(&c.Triage.Duplicates, fc.Triage.Duplicates)
	setStr(&c.Triage.LedgerPath, fc.Triage.LedgerPath)
	if fc.Triage.ConfidenceThreshold != nil {
		c.Triage.ConfidenceThreshold = *fc.Triage.ConfidenceThreshold
	}
	if fc.Triage.KeyPolicy != nil {
		c.Triage.KeyPolicy = constants.KeyPolicy(*fc.Triage.KeyPolicy)
	}
	if fc.Triage.DuplicateAction != nil {
		c.Triage.DuplicateAction = constants.DuplicateAction(*fc.Triage.DuplicateAction)
	}
	if fc.Triage.SkipHidden != nil {
		c.Triage.SkipHidden = *fc.Triage.SkipHidden
	}

	setStr(&c.OCR.Tesseract, fc.OCR.Tesseract)
	setStr(&c.OCR.TesseractLang, fc.OCR.Lang)
	setStr(&c.OCR.TessdataDir, fc.OCR.TessdataDir)
	if fc.OCR.PSM != nil {
		c.OCR.PSM = *fc.OCR.PSM
	}
	if fc.OCR.OEM != nil {
		c.OCR.OEM = *fc.OCR.OEM
	}
	if fc.OCR.Timeout != nil {
		d, err := time.ParseDuration(*fc.OCR.Timeout)
		if err != nil {
			return NewAppError(CodeConfig, "ocr.timeout", err)
		}
		c.OCR.Timeout = d
	}

	setStr(&c.Log.Level, fc.Log.Level)
	setStr(&c.Log.Format, fc.Log.Format)

	setStr(&c.Output.JournalDSN, fc.Output.JournalDSN)
	setStr(&c.Output.ReportPath, fc.Output.ReportPath)
	setStr(&c.Output.MetricsFile, fc.Output.MetricsFile)
	return nil
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}
