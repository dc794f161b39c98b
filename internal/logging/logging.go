package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Level is a configurable log level
type Level string

// Supported log levels (based on slog).
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format is a configurable handler type
type Format string

// Supported handler types (based on slog).
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New builds a logger writing to w
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch Level(strings.ToLower(level)) {
	case LevelDebug:
		lvl = slog.LevelDebug
	case LevelInfo, "":
		lvl = slog.LevelInfo
	case LevelWarn:
		lvl = slog.LevelWarn
	case LevelError:
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch Format(strings.ToLower(format)) {
	case FormatJSON, "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}
