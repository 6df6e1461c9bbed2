// Package webhook implements a notification handler that POSTs
// confirmation-request payloads to an HTTP endpoint as JSON.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	"github.com/melpes/mailcal/pkg/confirm"
)

// Default delivery settings.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second
)

// Config holds the webhook handler configuration.
type Config struct {
	// URL is the endpoint payloads are POSTed to.
	URL string
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
	// Attempts is the total number of delivery attempts per payload.
	Attempts uint
	// Delay is the wait between attempts.
	Delay time.Duration
}

// Handler delivers payloads over HTTP, retrying transient failures
// (429 and 5xx responses).
type Handler struct {
	url      string
	client   *http.Client
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

// New creates a webhook handler.
func New(cfg Config, logger *slog.Logger) (*Handler, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}

	return &Handler{
		url:      cfg.URL,
		client:   &http.Client{Timeout: cfg.Timeout},
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		logger:   logger,
	}, nil
}

// Name implements confirm.Handler.
func (h *Handler) Name() string { return "webhook" }

// Notify implements confirm.Handler.
func (h *Handler) Notify(payload confirm.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	err = retry.Do(
		func() error {
			return h.post(body)
		},
		retry.RetryIf(func(err error) bool {
			var transient *transientError
			if errors.As(err, &transient) {
				h.logger.Warn("webhook delivery failed, retrying",
					"request_id", payload.RequestID,
					"status", transient.status,
				)
				return true
			}
			return false
		}),
		retry.Attempts(h.attempts),
		retry.Delay(h.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("delivering webhook for request %s: %w", payload.RequestID, err)
	}

	h.logger.Debug("webhook delivered", "request_id", payload.RequestID)
	return nil
}

func (h *Handler) post(body []byte) error {
	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return &transientError{cause: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &transientError{status: resp.StatusCode}
	default:
		return fmt.Errorf("webhook endpoint returned %s", resp.Status)
	}
}

// transientError marks a delivery failure worth retrying.
type transientError struct {
	status int
	cause  error
}

func (e *transientError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("transient delivery failure: %v", e.cause)
	}
	return fmt.Sprintf("transient delivery failure: status %d", e.status)
}

func (e *transientError) Unwrap() error { return e.cause }
