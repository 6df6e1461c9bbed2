// Package slogger implements a notification handler that records
// confirmation requests on a structured logger.
package slogger

import (
	"context"
	"log/slog"

	"github.com/melpes/mailcal/pkg/confirm"
)

// Handler logs one record per notification.
type Handler struct {
	logger *slog.Logger
	level  slog.Level
}

// New creates a slog handler emitting at the given level.
func New(logger *slog.Logger, level slog.Level) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, level: level}
}

// Name implements confirm.Handler.
func (h *Handler) Name() string { return "slog" }

// Notify implements confirm.Handler.
func (h *Handler) Notify(payload confirm.NotificationPayload) error {
	h.logger.Log(context.Background(), h.level, "confirmation requested",
		"request_id", payload.RequestID,
		"source_document_id", payload.SourceDocumentID,
		"source_subject", payload.SourceSubject,
		"event_summary", payload.EventSummary,
		"confidence", payload.ConfidenceScore,
		"expires_at", payload.ExpiresAt,
	)
	return nil
}
