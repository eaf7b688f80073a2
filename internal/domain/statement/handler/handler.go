// Package handler exposes the statement pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/privacy"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-pipeline/pkg/notify"
)

// DefaultMaxUploadBytes bounds request bodies when no limit is configured.
const DefaultMaxUploadBytes = 20 << 20

// DefaultNotifyTimeout bounds one notification when WithNotifier gets no timeout.
const DefaultNotifyTimeout = 10 * time.Second

// multipartMemory is how much of a multipart body is kept in memory.
const multipartMemory = 8 << 20

// StatementHandler serves the document and privacy endpoints.
type StatementHandler struct {
	processor      *service.Processor
	notifier       Notifier
	notifyTimeout  time.Duration
	pending        sync.WaitGroup
	maxUploadBytes int64
	logger         *slog.Logger
}

// Notifier is told about every document that arrives through the webhook.
type Notifier interface {
	Send(ctx context.Context, msg *notify.Message) error
}

// NewStatementHandler creates a handler. maxUploadBytes <= 0 uses DefaultMaxUploadBytes.
func NewStatementHandler(processor *service.Processor, maxUploadBytes int64, logger *slog.Logger) *StatementHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementHandler{
		processor:      processor,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// WithNotifier reports webhook documents to n in the background, each send bounded
// by timeout. Notification failures are logged and never change the webhook response.
func (h *StatementHandler) WithNotifier(n Notifier, timeout time.Duration) *StatementHandler {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	h.notifier = n
	h.notifyTimeout = timeout
	return h
}

// Wait blocks until every notification in flight has finished.
func (h *StatementHandler) Wait() {
	h.pending.Wait()
}

// Register mounts every route on mux.
func (h *StatementHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/webhook/gmail", h.GmailWebhook)
	mux.HandleFunc("POST /api/documents/parse", h.ParseDocument)
	mux.HandleFunc("GET /api/documents/types", h.DocumentTypes)
	mux.HandleFunc("POST /api/privacy/mask", h.MaskText)
	mux.HandleFunc("POST /api/privacy/detect", h.DetectSensitive)
	mux.HandleFunc("GET /api/privacy/types", h.MaskTypes)
	mux.HandleFunc("GET /health", h.Health)
}

type envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// EmailSource describes the message a webhook attachment came from.
type EmailSource struct {
	Sender   string `json:"sender,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Date     string `json:"date,omitempty"`
	Filename string `json:"filename"`
}

// WebhookResult is the data returned by the Gmail webhook.
type WebhookResult struct {
	Source EmailSource       `json:"source"`
	Result *statement.Result `json:"result"`
}

// GmailWebhook accepts a PDF attachment forwarded by a mail automation. Masking and
// validation default to on because the result usually leaves for another system.
func (h *StatementHandler) GmailWebhook(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r, true)
	if !ok {
		return
	}
	res, ok := h.process(w, r, upload.request)
	if !ok {
		return
	}

	source := EmailSource{
		Sender:   r.FormValue("sender"),
		Subject:  r.FormValue("subject"),
		Date:     r.FormValue("date"),
		Filename: upload.filename,
	}
	h.logger.Info("webhook document processed",
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("document_type", string(res.DocumentType)),
		slog.String("filename", source.Filename))
	h.notify(RequestIDFrom(r.Context()), source, res)
	h.writeJSON(w, r, http.StatusOK, envelope{Status: "success", Message: "document processed", Data: WebhookResult{Source: source, Result: res}})
}

// notify sends the webhook notification on its own goroutine so a slow receiver
// never holds the response.
func (h *StatementHandler) notify(requestID string, source EmailSource, res *statement.Result) {
	if h.notifier == nil {
		return
	}
	body := fmt.Sprintf("%s received as %s", res.DocumentType.Label(), source.Filename)
	if source.Sender != "" {
		body += " from " + source.Sender
	}
	data := map[string]any{
		"request_id":    requestID,
		"document_type": res.DocumentType,
		"filename":      source.Filename,
		"transactions":  len(res.Transactions),
		"warnings":      len(res.Warnings),
	}
	if res.Validation != nil {
		data["valid"] = res.Validation.Valid
	}
	msg := &notify.Message{Title: "Statement processed", Body: body, Data: data}

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.notifyTimeout)
		defer cancel()
		if err := h.notifier.Send(ctx, msg); err != nil {
			h.logger.Warn("webhook notification failed",
				slog.String("request_id", requestID),
				slog.Any("error", err))
		}
	}()
}

// ParseDocument runs the pipeline on an uploaded PDF.
func (h *StatementHandler) ParseDocument(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r, false)
	if !ok {
		return
	}
	res, ok := h.process(w, r, upload.request)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Status: "success", Data: res})
}

// MaskRequest is the body of POST /api/privacy/mask and POST /api/privacy/detect.
type MaskRequest struct {
	Text       string   `json:"text"`
	MaskTypes  []string `json:"mask_types"`
	Aggressive bool     `json:"aggressive"`
}

// MaskText masks free text sent as JSON.
func (h *StatementHandler) MaskText(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readMaskRequest(w, r)
	if !ok {
		return
	}
	res, err := h.processor.MaskText(req.Text, req.MaskTypes, req.Aggressive)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "", err.Error())
		return
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Status: "success", Data: res})
}

// DetectResult is the data returned by POST /api/privacy/detect.
type DetectResult struct {
	Found   bool            `json:"found"`
	Matches []privacy.Match `json:"matches"`
	Counts  map[string]int  `json:"counts"`
}

// DetectSensitive reports the personal data in free text without masking it. The
// body is the same as for MaskText.
func (h *StatementHandler) DetectSensitive(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readMaskRequest(w, r)
	if !ok {
		return
	}
	matches, err := h.processor.DetectText(req.Text, req.MaskTypes, req.Aggressive)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "", err.Error())
		return
	}
	counts := make(map[string]int)
	for _, m := range matches {
		counts[m.Category]++
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Status: "success", Data: DetectResult{
		Found:   len(matches) > 0,
		Matches: matches,
		Counts:  counts,
	}})
}

// readMaskRequest decodes a MaskRequest. It writes the error response itself and
// reports whether the caller may continue.
func (h *StatementHandler) readMaskRequest(w http.ResponseWriter, r *http.Request) (MaskRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	var req MaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "", "request body too large")
			return req, false
		}
		h.writeError(w, r, http.StatusBadRequest, "", "invalid json")
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, r, http.StatusBadRequest, "", "text is required")
		return req, false
	}
	return req, true
}

// DocumentTypeInfo describes one supported document type.
type DocumentTypeInfo struct {
	Type  statement.DocumentType `json:"type"`
	Label string                 `json:"label"`
}

// DocumentTypes lists the document types a caller may pass as document_type.
func (h *StatementHandler) DocumentTypes(w http.ResponseWriter, r *http.Request) {
	types := make([]DocumentTypeInfo, 0, len(statement.KnownTypes)+1)
	for _, t := range append(append([]statement.DocumentType{}, statement.KnownTypes...), statement.Unknown) {
		types = append(types, DocumentTypeInfo{Type: t, Label: t.Label()})
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Status: "success", Data: types})
}

// MaskTypes lists the masking categories.
func (h *StatementHandler) MaskTypes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, envelope{Status: "success", Data: privacy.Categories()})
}

// Health reports liveness.
func (h *StatementHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, envelope{Status: "ok", Data: map[string]bool{
		"annotation_enabled": h.processor.AnnotationEnabled(),
	}})
}

type upload struct {
	filename string
	request  service.Request
}

// readUpload parses the multipart form shared by the parse and webhook endpoints.
// It writes the error response itself and reports whether the caller may continue.
func (h *StatementHandler) readUpload(w http.ResponseWriter, r *http.Request, webhook bool) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "", "file too large")
			return upload{}, false
		}
		h.writeError(w, r, http.StatusBadRequest, "", "multipart form expected")
		return upload{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "", "multipart field 'file' is required")
		return upload{}, false
	}
	defer file.Close()

	if header.Filename == "" || !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.writeError(w, r, http.StatusBadRequest, "", "only PDF files are accepted")
		return upload{}, false
	}

	data, err := readAll(file)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "", "could not read file")
		return upload{}, false
	}

	hint, err := classifier.ParseType(r.FormValue("document_type"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "", err.Error())
		return upload{}, false
	}

	categories := splitList(r.FormValue("mask_types"))
	if _, err := privacy.ParseCategories(categories); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "", err.Error())
		return upload{}, false
	}

	req := service.Request{
		Data:           data,
		Password:       r.FormValue("password"),
		TypeHint:       hint,
		Mask:           formBool(r, "mask", webhook),
		MaskCategories: categories,
		Aggressive:     formBool(r, "aggressive", false),
		Validate:       formBool(r, "validate", webhook),
		Annotate:       formBool(r, "annotate", false),
	}
	return upload{filename: filepath.Base(header.Filename), request: req}, true
}

func (h *StatementHandler) process(w http.ResponseWriter, r *http.Request, req service.Request) (*statement.Result, bool) {
	res, err := h.processor.Process(r.Context(), req)
	if err == nil {
		return res, true
	}

	kind := statement.KindOf(err)
	switch kind {
	case statement.KindCorrupt:
		h.writeError(w, r, http.StatusUnprocessableEntity, kind, "the file is not a readable PDF")
	case statement.KindEncrypted:
		h.writeError(w, r, http.StatusUnauthorized, kind, "the PDF is encrypted and no password opened it")
	default:
		h.logger.Error("document processing failed",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.Any("error", err))
		h.writeError(w, r, http.StatusInternalServerError, "", "processing failed")
	}
	return nil, false
}

func (h *StatementHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload envelope) {
	payload.RequestID = RequestIDFrom(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("write response", slog.Any("error", err))
	}
}

func (h *StatementHandler) writeError(w http.ResponseWriter, r *http.Request, status int, kind statement.ErrorKind, msg string) {
	h.writeJSON(w, r, status, envelope{Status: "error", Kind: string(kind), Message: msg})
}

func readAll(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// formBool reads a boolean form field; missing or unparsable values yield def.
func formBool(r *http.Request, key string, def bool) bool {
	v := strings.TrimSpace(r.FormValue(key))
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
