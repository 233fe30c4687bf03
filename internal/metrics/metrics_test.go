package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

func TestTriageMetricsCounters(t *testing.T) {
	m := NewTriageMetrics()

	m.ObserveDecision(constants.DecisionProcessed)
	m.ObserveDecision(constants.DecisionProcessed)
	m.ObserveDecision(constants.DecisionEnquiries)
	m.ObserveExtraction(constants.PDF, 20*time.Millisecond, false)
	m.ObserveExtraction(constants.PDF, 30*time.Millisecond, true)
	m.ObserveExtraction("", time.Millisecond, true)
	m.ObserveMoveFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("enquiries")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("likely_duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractionFailures.WithLabelValues("PDF")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractionFailures.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.moveFailures))
	assert.Equal(t, 2, testutil.CollectAndCount(m.extractionDuration))

	n, err := testutil.GatherAndCount(m.Registry(), "invoice_triage_documents_total")
	require.NoError(t, err)
	assert.Equal(t, len(constants.AllDecisions), n)
}

func TestWriteTextfile(t *testing.T) {
	m := NewTriageMetrics()
	m.ObserveDecision(constants.DecisionManualReview)
	m.MarkRunFinished(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "invoice_triage.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `invoice_triage_documents_total{decision="manual_review"} 1`)
	assert.Contains(t, text, "invoice_triage_last_run_timestamp_seconds 1.7e+09")
	assert.True(t, strings.Contains(text, "# TYPE invoice_triage_documents_total counter"))
}
