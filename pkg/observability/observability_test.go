package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "statement-pipeline", "warn")

	logger.Info("dropped")
	logger.Warn("kept", slog.String("document_type", "credit_card"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "statement-pipeline", rec["service"])
	assert.Equal(t, "credit_card", rec["document_type"])
}

func TestMetrics(t *testing.T) {
	m := NewMetrics("test")

	m.RecordDocument("bank_statement", "ok")
	m.RecordDocument("", "encrypted")
	m.RecordMasked("email", 3)
	m.RecordMasked("email", 0)
	m.RecordWarning("")
	m.ObserveStage("extract", 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("bank_statement", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("none", "encrypted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.maskedTotal.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.warningsTotal.WithLabelValues("other")))

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/health", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "test_pipeline_documents_total")
}
