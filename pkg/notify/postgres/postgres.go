// Package postgres implements a notification handler that records every
// dispatched confirmation request in a PostgreSQL audit table. Workflow
// state itself stays in memory; this is an append-only trail for operators.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melpes/mailcal/pkg/confirm"
)

//go:embed 001_create_confirmation_notifications.sql
var migrationSQL string

// Config holds the PostgreSQL handler configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Handler writes notification payloads to the audit table.
type Handler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the database and runs the audit-table migration.
func New(cfg Config, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migration: %w", err)
	}

	logger.Info("connected to PostgreSQL audit store",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	return &Handler{pool: pool, logger: logger}, nil
}

// Name implements confirm.Handler.
func (h *Handler) Name() string { return "postgres" }

// Notify implements confirm.Handler. Re-dispatch of the same request id is
// a no-op by the table's unique constraint.
func (h *Handler) Notify(payload confirm.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = h.pool.Exec(ctx, `
		INSERT INTO confirmation_notifications (
			request_id, source_document_id, source_subject, event_summary,
			confidence_score, payload, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING
	`,
		payload.RequestID,
		payload.SourceDocumentID,
		payload.SourceSubject,
		payload.EventSummary,
		payload.ConfidenceScore,
		body,
		payload.CreatedAt,
		payload.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("recording notification for request %s: %w", payload.RequestID, err)
	}

	h.logger.Debug("notification recorded", "request_id", payload.RequestID)
	return nil
}

// Close closes the connection pool.
func (h *Handler) Close() {
	if h.pool != nil {
		h.pool.Close()
		h.logger.Info("closed PostgreSQL connection pool")
	}
}
