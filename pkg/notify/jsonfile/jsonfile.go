// Package jsonfile implements a notification handler that appends every
// confirmation request to a JSON file on disk.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/melpes/mailcal/pkg/confirm"
)

// Handler keeps the file's full payload array in memory and rewrites the
// file on every notification. JSON has no append mode, so the whole array
// is marshaled each time.
type Handler struct {
	filePath string
	mu       sync.Mutex
	payloads []confirm.NotificationPayload
	logger   *slog.Logger
}

// Config holds the JSON file handler configuration.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
}

// New creates a JSON file handler, loading any payloads already present in
// the file.
func New(cfg Config, logger *slog.Logger) (*Handler, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("jsonfile path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{filePath: cfg.FilePath, logger: logger}
	if err := h.loadExisting(); err != nil {
		logger.Warn("could not load existing notifications", "file", cfg.FilePath, "error", err)
	}

	logger.Info("jsonfile handler initialized", "file", cfg.FilePath, "existing_count", len(h.payloads))
	return h, nil
}

func (h *Handler) loadExisting() error {
	data, err := os.ReadFile(h.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &h.payloads)
}

// Name implements confirm.Handler.
func (h *Handler) Name() string { return "jsonfile" }

// Notify implements confirm.Handler.
func (h *Handler) Notify(payload confirm.NotificationPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.payloads = append(h.payloads, payload)

	data, err := json.MarshalIndent(h.payloads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling notifications: %w", err)
	}
	if err := os.WriteFile(h.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing notifications file: %w", err)
	}

	h.logger.Debug("notification recorded",
		"request_id", payload.RequestID,
		"total_count", len(h.payloads),
	)
	return nil
}

// Count returns the number of recorded notifications.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.payloads)
}
