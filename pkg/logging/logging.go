// Package logging configures structured logging on top of log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables honored by FromEnv.
const (
	levelEnv  = "MAILCAL_LOG_LEVEL"
	formatEnv = "MAILCAL_LOG_FORMAT"
)

// Config holds logging options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON enables JSON output instead of the text handler.
	JSON bool
	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// FromEnv builds a configuration from the environment. MAILCAL_LOG_LEVEL
// accepts DEBUG, INFO, WARN or ERROR (default INFO); MAILCAL_LOG_FORMAT
// accepts "json" or "text" (default text).
func FromEnv() Config {
	return Config{
		Level: ParseLevel(os.Getenv(levelEnv)),
		JSON:  strings.EqualFold(os.Getenv(formatEnv), "json"),
	}
}

// ParseLevel converts a level name to slog.Level. Unknown or empty
// names map to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from the configuration and installs it as the
// process default.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
