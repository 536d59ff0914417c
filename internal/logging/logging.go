// Package logging builds the process-wide slog.Logger from flag values.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	TextFormat = "text"
	JSONFormat = "json"
)

type Config struct {
	// Level is one of debug, info, warn or error.
	Level string
	// Format is TextFormat or JSONFormat.
	Format string
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

func New(cfg Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", TextFormat:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case JSONFormat:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want %s or %s", cfg.Format, TextFormat, JSONFormat)
	}
}
