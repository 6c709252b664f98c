// Package logging opens the JSON log file the dashboard writes to. The TUI
// owns the terminal, so nothing is logged to stdout or stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/automata-tech/labdash/internal/config"
)

// New opens cfg.Path for appending and returns a JSON logger plus the func
// that closes the file. An empty path yields a discard logger.
func New(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	if cfg.Path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(h), f.Close, nil
}
