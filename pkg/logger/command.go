package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ForCommand builds the logger a CLI command runs with: pretty records on w
// and, when logFile is set, JSON records at debug level appended to that
// file. The returned func closes the file.
func ForCommand(w io.Writer, debug bool, logFile string) (*slog.Logger, func() error, error) {
	terminal := New(WithWriter(w), WithDebug(debug), WithPretty(true))
	if logFile == "" {
		return terminal, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := New(WithWriter(f), WithJSON(true), WithDebug(true))
	return Multi(terminal, file), f.Close, nil
}
