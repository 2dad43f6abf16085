// Package logging builds the zerolog loggers used across the module.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configure a logger
type Options struct {
	// Level is one of trace, debug, info, warn, error or disabled
	Level string
	// Format is json or console
	Format string
	// Output defaults to stderr
	Output io.Writer
}

// New creates a logger from options
func New(opts Options) zerolog.Logger {
	writer := opts.Output
	if writer == nil {
		writer = os.Stderr
	}

	if strings.EqualFold(opts.Format, "console") {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	return zerolog.New(writer).
		With().Timestamp().Str("component", "kwdata").Logger().
		Level(ParseLevel(opts.Level))
}

// ParseLevel converts a level name, falling back to warn
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}

// Nop returns a logger that discards everything
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
