package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ParseLevel maps a log level name to a slog level. "none" is reported
// with ok false.
func ParseLevel(name string) (level slog.Level, ok bool, err error) {
	switch name {
	case "none":
		return 0, false, nil
	case "error":
		return slog.LevelError, true, nil
	case "warn":
		return slog.LevelWarn, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "debug":
		return slog.LevelDebug, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected log level %q", name)
	}
}

// NewLogger builds a text logger on w, or a JSON logger on logFile when one
// is named. The returned file, if any, must be closed by the caller.
func NewLogger(levelName, logFile string, w io.Writer) (*slog.Logger, *os.File, error) {
	level, ok, err := ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return slog.New(slog.DiscardHandler), nil, nil
	}

	opts := &slog.HandlerOptions{Level: level}
	if logFile == "" {
		return slog.New(slog.NewTextHandler(w, opts)), nil, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, opts)), f, nil
}
