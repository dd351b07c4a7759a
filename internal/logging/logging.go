// Package logging builds the zerolog logger for the hermes command.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sbowman/hermes-reconnect/internal/config"
)

// New creates a logger from the configuration:  level, console or JSON format, and stdout or
// stderr output.
func New(cfg config.LogConfig) zerolog.Logger {
	var w io.Writer = os.Stderr
	if strings.ToLower(cfg.Output) == "stdout" {
		w = os.Stdout
	}

	return NewWriter(w, cfg)
}

// NewWriter creates a logger writing to w.
func NewWriter(w io.Writer, cfg config.LogConfig) zerolog.Logger {
	var logger zerolog.Logger
	if strings.ToLower(cfg.Format) == "json" {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"})
	}

	return logger.With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
