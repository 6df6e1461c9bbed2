// Package console implements a notification handler that prints
// confirmation requests as human-readable text.
package console

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/melpes/mailcal/pkg/confirm"
)

// Handler writes a formatted block per notification to an io.Writer.
type Handler struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

// New creates a console handler. A nil writer defaults to os.Stdout.
func New(out io.Writer, logger *slog.Logger) *Handler {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{out: out, logger: logger}
}

// Name implements confirm.Handler.
func (h *Handler) Name() string { return "console" }

// Notify implements confirm.Handler.
func (h *Handler) Notify(payload confirm.NotificationPayload) error {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Confirmation requested [%s] ===\n", payload.RequestID)
	if payload.SourceSubject != "" {
		fmt.Fprintf(&b, "Source: %s (%s)\n", payload.SourceSubject, payload.SourceDocumentID)
	} else {
		fmt.Fprintf(&b, "Source: %s\n", payload.SourceDocumentID)
	}

	keys := make([]string, 0, len(payload.EventDetails))
	for key := range payload.EventDetails {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %-12s %s\n", key+":", payload.EventDetails[key])
	}

	fmt.Fprintf(&b, "Confidence: %.1f%%\n", payload.ConfidenceScore*100)
	fmt.Fprintf(&b, "Respond before %s\n", payload.ExpiresAt.Format("2006-01-02 15:04"))

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := io.WriteString(h.out, b.String()); err != nil {
		return fmt.Errorf("writing notification: %w", err)
	}
	return nil
}
