// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. Non-production environments get the
// human-readable console writer; production emits JSON lines to stdout.
// The standard library logger is redirected so third-party packages end up in the same stream.
func Setup(level, env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env != "production" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	logger := New(out, level).With().Str("service", "onboarding").Logger()
	log.Logger = logger
	zerolog.SetGlobalLevel(ParseLevel(level))
	stdlog.SetFlags(0)
	stdlog.SetOutput(logger)
	return logger
}

// New returns a timestamped logger writing to w at the given level.
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
