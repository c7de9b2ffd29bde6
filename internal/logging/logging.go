// Package logging builds the slog loggers used by gridmon.
//
// Terminals get a colourised tint handler; anything else (pipes, files,
// log collectors) gets JSON. The level comes from the caller or, when empty,
// from the LOG_LEVEL environment variable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// EnvLogLevel names the environment variable consulted when no level is given.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel converts a level name to a slog.Level. Unknown or empty names
// fall back to info. "warning" is accepted as an alias for warn.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewStructuredLogger returns a logger writing to w with module and version
// attributes attached to every record. Debug level adds source locations.
func NewStructuredLogger(w io.Writer, module, version, level string) *slog.Logger {
	if level == "" {
		level = os.Getenv(EnvLogLevel)
	}
	lvl := ParseLevel(level)

	var h slog.Handler
	if isTerminal(w) {
		h = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			AddSource:  lvl == slog.LevelDebug,
			TimeFormat: time.TimeOnly,
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     lvl,
			AddSource: lvl == slog.LevelDebug,
		})
	}

	return slog.New(h).With("module", module, "version", version)
}

// SetDefaultStructuredLogger installs a stderr logger as the slog default.
func SetDefaultStructuredLogger(module, version, level string) *slog.Logger {
	l := NewStructuredLogger(os.Stderr, module, version, level)
	slog.SetDefault(l)
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
