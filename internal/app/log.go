package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// newLogger creates a dual-sink structured logger: human-readable text on
// stderr and JSON in logDir/gdsync.log for later inspection of unattended
// scheduler runs. It returns the logger and the open log file for cleanup.
func newLogger(logDir string, level slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "gdsync.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	return slog.New(fanoutHandler(os.Stderr, f, level)), f, nil
}

// fanoutHandler builds the handler pair behind newLogger: text to stderr,
// JSON to the file. Split out so tests can aim both sinks at buffers.
func fanoutHandler(stderr, file io.Writer, level slog.Level) slog.Handler {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slogmulti.Fanout(stderrHandler, fileHandler)
}

// slogAdapter wraps *slog.Logger to satisfy the gdsync.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
