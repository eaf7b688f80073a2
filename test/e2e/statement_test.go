// Package e2etest runs the statement pipeline end to end over HTTP with real PDFs.
package e2etest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/handler"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader/pdftest"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-pipeline/pkg/config"
)

// testDataDir holds real statements. They are never committed; drop files here to
// run TestSampleStatements locally.
const testDataDir = "../../internal/data/statements"

var bankStatement = []string{
	"ACME Bank Statement of Account",
	"Account Number: 0123-4567-8901",
	"Contact: support@acme-bank.example",
	"Statement Period 2024-10-01 ~ 2024-10-31",
	"Opening Balance 50,000.00",
	"2024-10-01 Salary 3,000.00 53,000.00",
	"Closing Balance 53,000.00",
}

type response struct {
	Status    string          `json:"status"`
	Kind      string          `json:"kind"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, err := config.FromEnv(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	processor, _, err := service.Build(cfg, logger)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.NewStatementHandler(processor, cfg.Server.MaxUploadBytes, logger).Register(mux)

	srv := httptest.NewServer(handler.Chain(mux, handler.RequestID, handler.Logging(logger)))
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, srv *httptest.Server, path, filename string, data []byte, fields map[string]string) (int, response) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+path, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.RequestID)
	return resp.StatusCode, out
}

func TestGeneratedStatement_Parse(t *testing.T) {
	srv := newServer(t)
	data := pdftest.Build("October statement", bankStatement)

	status, resp := upload(t, srv, "/api/documents/parse", "statement.pdf", data, nil)
	require.Equal(t, http.StatusOK, status, string(resp.Data))

	var result struct {
		DocumentType string         `json:"document_type"`
		TotalPages   int            `json:"total_pages"`
		Metadata     map[string]any `json:"metadata"`
		Masking      any            `json:"masking"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "bank_statement", result.DocumentType)
	assert.Equal(t, 1, result.TotalPages)
	assert.Equal(t, "October statement", result.Metadata["title"])
	assert.Nil(t, result.Masking, "parse does not mask unless asked")
}

func TestGeneratedStatement_WebhookMasks(t *testing.T) {
	srv := newServer(t)
	data := pdftest.Build("October statement", bankStatement)

	status, resp := upload(t, srv, "/api/webhook/gmail", "estatement.pdf", data, map[string]string{
		"sender":  "bank@acme.example",
		"subject": "Your October statement",
	})
	require.Equal(t, http.StatusOK, status, string(resp.Data))

	var result struct {
		Source struct {
			Sender   string `json:"sender"`
			Filename string `json:"filename"`
		} `json:"source"`
		Result struct {
			Masking struct {
				Text string `json:"text"`
			} `json:"masking"`
			Validation struct {
				Schema string `json:"schema"`
			} `json:"validation"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "bank@acme.example", result.Source.Sender)
	assert.Equal(t, "estatement.pdf", result.Source.Filename)
	assert.NotEmpty(t, result.Result.Masking.Text)
	assert.NotContains(t, result.Result.Masking.Text, "support@acme-bank.example")
	assert.Equal(t, "bank_statement", result.Result.Validation.Schema)
}

func TestCorruptUpload(t *testing.T) {
	srv := newServer(t)

	status, resp := upload(t, srv, "/api/documents/parse", "broken.pdf", []byte("%PDF-1.4 nothing else"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "PDF_CORRUPT", resp.Kind)
}

// TestSampleStatements runs every PDF found in testDataDir. Encrypted samples
// without a configured password are accepted as 401.
func TestSampleStatements(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join(testDataDir, "*.pdf"))
	require.NoError(t, err)
	if len(paths) == 0 {
		t.Skipf("no sample statements in %s", testDataDir)
	}

	srv := newServer(t)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)

			status, resp := upload(t, srv, "/api/documents/parse", filepath.Base(path), data, map[string]string{"validate": "true"})
			require.Contains(t, []int{http.StatusOK, http.StatusUnauthorized}, status, string(resp.Data))

			var result struct {
				DocumentType string `json:"document_type"`
				Transactions []any  `json:"transactions"`
			}
			if status == http.StatusOK {
				require.NoError(t, json.Unmarshal(resp.Data, &result))
			}
			t.Logf("%s: status=%d type=%s transactions=%d",
				filepath.Base(path), status, result.DocumentType, len(result.Transactions))
		})
	}
}
