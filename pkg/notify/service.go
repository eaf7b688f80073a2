// Package notify posts short processing notices to a chat or automation webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RequestTimeout bounds a single notification.
const RequestTimeout = 10 * time.Second

// maxErrorBody is how much of a failed response body is kept in the error.
const maxErrorBody = 512

// Message is the JSON body posted to the webhook. Data carries counts and
// identifiers only; statement text and amounts never leave through here.
type Message struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Service delivers messages to one webhook URL.
type Service struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewService creates a notification service. A zero timeout uses RequestTimeout.
func NewService(url string, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send posts msg to the webhook.
func (s *Service) Send(ctx context.Context, msg *Message) error {
	if msg == nil || msg.Body == "" {
		return errors.New("notification body is required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Warn("notification rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		return fmt.Errorf("notification failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	s.logger.Debug("notification sent", slog.String("title", msg.Title))
	return nil
}
