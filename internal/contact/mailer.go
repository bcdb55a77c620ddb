package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	mailerMaxRetries   = 3
	mailerInitialDelay = 500 * time.Millisecond
	mailerTimeout      = 15 * time.Second
)

// Email is an outgoing notification.
type Email struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Text    string
}

// Mailer delivers notifications.
// Implementations: LogMailer, HTTPMailer
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// LogMailer writes notifications to the log instead of sending them.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

// Send logs the email.
func (m *LogMailer) Send(_ context.Context, e Email) error {
	m.log.Info("contact notification",
		zap.String("to", e.To),
		zap.String("reply_to", e.ReplyTo),
		zap.String("subject", e.Subject),
		zap.Int("bytes", len(e.Text)),
	)
	return nil
}

// HTTPMailer posts notifications to a Resend-compatible JSON API.
type HTTPMailer struct {
	endpoint     string
	apiKey       string
	client       *http.Client
	initialDelay time.Duration
}

type httpMailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type httpMailError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// NewHTTPMailer creates a mailer for the given endpoint.
func NewHTTPMailer(endpoint, apiKey string) *HTTPMailer {
	return &HTTPMailer{
		endpoint:     endpoint,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: mailerTimeout},
		initialDelay: mailerInitialDelay,
	}
}

// Send posts the email, retrying rate limits and server errors with
// exponential backoff.
func (m *HTTPMailer) Send(ctx context.Context, e Email) error {
	body, err := json.Marshal(httpMailRequest{
		From:    e.From,
		To:      []string{e.To},
		ReplyTo: e.ReplyTo,
		Subject: e.Subject,
		Text:    e.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < mailerMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * m.initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		var apiErr httpMailError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			lastErr = fmt.Errorf("mail API error (%d): %s", resp.StatusCode, apiErr.Message)
		} else {
			lastErr = fmt.Errorf("mail API error (%d): %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			continue
		}
		return lastErr
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", mailerMaxRetries, lastErr)
}
