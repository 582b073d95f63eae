package logging

import (
	"fmt"
	"log/slog"
)

// SetupStdioSafe initializes a logger that never writes to stdout: the
// daemon reserves stdout exclusively for the line-delimited JSON-RPC
// protocol (see internal/daemon). Any stray write to stdout would
// corrupt the protocol stream. Logs go to a rotating file under
// DefaultLogDir instead; slog.SetDefault makes it the process default
// so nothing upstream can accidentally log to stdout either.
//
// Returns a cleanup func that closes the underlying file.
func SetupStdioSafe(level Level) (*slog.Logger, func() error, error) {
	if err := EnsureLogDir(); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	w, err := NewRotatingWriter(DefaultLogPath(), 10, 5)
	if err != nil {
		return nil, nil, fmt.Errorf("open rotating log file: %w", err)
	}

	logger := New(level, w)
	slog.SetDefault(logger)

	return logger, w.Close, nil
}
