// Package logging wraps log/slog the way the rest of the engine expects
// to use it: one process-wide logger built once from configuration,
// structured fields for the component/path/kind triple that shows up in
// every degrade-and-continue code path.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Level mirrors the logging.level config key's closed enum.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// New builds a JSON-handler slog.Logger writing to w at the given level.
// A nil w defaults to os.Stderr so stdout stays reserved for the
// line-delimited JSON-RPC protocol (see internal/daemon).
func New(level Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	return slog.New(h)
}

// Component returns a logger with a component field set, the shape
// every degrade-and-log call site uses.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String("component", name))
}

// Degraded logs a component continuing in a degraded mode: a backend
// timed out, a file failed to parse, a lookup missed, etc. It never
// aborts the caller — logging is the only side effect.
func Degraded(ctx context.Context, l *slog.Logger, component, path string, kind string, err error) {
	args := []any{
		slog.String("component", component),
		slog.String("kind", kind),
	}
	if path != "" {
		args = append(args, slog.String("path", path))
	}
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.WarnContext(ctx, "degraded", args...)
}
