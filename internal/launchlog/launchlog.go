// Package launchlog is the service's structured logging setup. It keeps the
// teacher's package-level logDebug/logInfo/logWarn/logError shortcut shape
// and its context-carried correlation id, rebuilt on github.com/rs/zerolog
// instead of a hand-rolled writer, per SPEC_FULL.md's ambient stack section.
package launchlog

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Init configures the package-level logger. format is "json" or "text"
// (console-friendly); anything else defaults to text. level is parsed with
// zerolog.ParseLevel, defaulting to info on error.
func Init(levelStr, format string, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = out
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	Default = logger
	return logger
}

// Default is the process-wide logger, analogous to the teacher's
// defaultLogger global. It is set by Init; until then it discards output.
var Default = zerolog.New(io.Discard)

type ctxKey struct{}

// WithCorrelation attaches a fresh correlation id (grounded in the
// google/uuid dependency used across the retrieval pack) to ctx and to the
// logger embedded in it, so every log line produced while handling one
// generation or one worker's I/O can be traced back to it.
func WithCorrelation(ctx context.Context, logger zerolog.Logger) (context.Context, zerolog.Logger) {
	id := uuid.New().String()
	l := logger.With().Str("corr", id).Logger()
	return l.WithContext(ctx), l
}

// From returns the logger embedded in ctx, or Default if none was attached.
func From(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &Default
}

// Debug, Info, Warn, and Error are package-level shortcuts against Default,
// mirroring the teacher's logDebug/logInfo/logWarn/logError convenience
// functions.
func Debug() *zerolog.Event { return Default.Debug() }
func Info() *zerolog.Event  { return Default.Info() }
func Warn() *zerolog.Event  { return Default.Warn() }
func Error() *zerolog.Event { return Default.Error() }

// Stderr is the process's standard error stream, kept as a variable so
// tests can swap it out.
var Stderr io.Writer = os.Stderr
