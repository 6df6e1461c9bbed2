// Package config loads application configuration from environment
// variables, optionally overlaid on a JSON config file.
package config

import (
	"fmt"
	"os"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/melpes/mailcal/pkg/api"
	"github.com/melpes/mailcal/pkg/confidence"
)

// Config holds the application configuration. Each field maps to an
// environment variable; a config.json file with the same keys may be
// used instead, with the environment taking precedence.
type Config struct {
	// OverallThreshold is the minimum aggregate confidence below which
	// a candidate event requires user confirmation.
	// Environment variable: MAILCAL_OVERALL_THRESHOLD
	OverallThreshold float64 `koanf:"MAILCAL_OVERALL_THRESHOLD"`

	// Per-field confirmation thresholds.
	SummaryThreshold      float64 `koanf:"MAILCAL_SUMMARY_THRESHOLD"`
	DatetimeThreshold     float64 `koanf:"MAILCAL_DATETIME_THRESHOLD"`
	LocationThreshold     float64 `koanf:"MAILCAL_LOCATION_THRESHOLD"`
	ParticipantsThreshold float64 `koanf:"MAILCAL_PARTICIPANTS_THRESHOLD"`

	// ExpiryHours is how long a confirmation request stays answerable.
	// Environment variable: MAILCAL_EXPIRY_HOURS
	ExpiryHours int `koanf:"MAILCAL_EXPIRY_HOURS"`

	// AuditFilePath, when set, records every dispatched notification in a
	// JSON file.
	// Environment variable: MAILCAL_AUDIT_FILE
	AuditFilePath string `koanf:"MAILCAL_AUDIT_FILE"`

	// WebhookURL, when set, enables the webhook notification handler.
	// Environment variable: MAILCAL_WEBHOOK_URL
	WebhookURL string `koanf:"MAILCAL_WEBHOOK_URL"`

	// AMQPURL, when set, enables the AMQP notification handler.
	// Environment variable: MAILCAL_AMQP_URL
	AMQPURL      string `koanf:"MAILCAL_AMQP_URL"`
	AMQPExchange string `koanf:"MAILCAL_AMQP_EXCHANGE"`

	// PostgresHost, when set, enables the audit-log notification handler.
	// Environment variable: MAILCAL_POSTGRES_HOST
	PostgresHost     string `koanf:"MAILCAL_POSTGRES_HOST"`
	PostgresPort     int    `koanf:"MAILCAL_POSTGRES_PORT"`
	PostgresDatabase string `koanf:"MAILCAL_POSTGRES_DB"`
	PostgresUser     string `koanf:"MAILCAL_POSTGRES_USER"`
	PostgresPassword string `koanf:"MAILCAL_POSTGRES_PASSWORD"`
}

// Default returns the configuration used when no overrides are present.
func Default() Config {
	return Config{
		OverallThreshold:      confidence.DefaultThreshold,
		SummaryThreshold:      0.6,
		DatetimeThreshold:     0.8,
		LocationThreshold:     0.5,
		ParticipantsThreshold: 0.4,
		ExpiryHours:           24,
	}
}

// Load reads configuration from the given JSON file (if it exists) and
// from environment variables, with the environment taking precedence.
// An empty filePath skips the file entirely.
func Load(filePath string) (Config, error) {
	k := koanf.New(".")

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			if err := k.Load(file.Provider(filePath), kJson.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading config file %s: %w", filePath, err)
			}
		}
	}

	if err := k.Load(env.Provider("MAILCAL_", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	for name, v := range map[string]float64{
		"MAILCAL_OVERALL_THRESHOLD":      c.OverallThreshold,
		"MAILCAL_SUMMARY_THRESHOLD":      c.SummaryThreshold,
		"MAILCAL_DATETIME_THRESHOLD":     c.DatetimeThreshold,
		"MAILCAL_LOCATION_THRESHOLD":     c.LocationThreshold,
		"MAILCAL_PARTICIPANTS_THRESHOLD": c.ParticipantsThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", name, v)
		}
	}
	if c.ExpiryHours < 0 {
		return fmt.Errorf("MAILCAL_EXPIRY_HOURS must not be negative, got %d", c.ExpiryHours)
	}
	return nil
}

// EvaluatorConfig converts the loaded thresholds into an evaluator
// configuration.
func (c Config) EvaluatorConfig() confidence.Config {
	return confidence.Config{
		DefaultThreshold: c.OverallThreshold,
		FieldThresholds: map[string]float64{
			api.FieldSummary:      c.SummaryThreshold,
			api.FieldDatetime:     c.DatetimeThreshold,
			api.FieldLocation:     c.LocationThreshold,
			api.FieldParticipants: c.ParticipantsThreshold,
		},
	}
}

// Expiry returns the configured request lifetime.
func (c Config) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}
