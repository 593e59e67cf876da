package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// newLogger builds the process logger from the logging section. The
// returned closer releases the log file, if any.
func newLogger(cfg entities.LoggingConfig, verbose bool, stderr io.Writer) (*slog.Logger, func() error, error) {
	level := parseLevel(cfg.GetLevel())
	if verbose || cfg.Verbose {
		level = slog.LevelDebug
	}

	out := stderr
	closer := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 - path from the user's own config
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}

func parseLevel(l entities.LogLevel) slog.Level {
	switch entities.LogLevel(strings.ToLower(string(l))) {
	case entities.LogLevelDebug:
		return slog.LevelDebug
	case entities.LogLevelWarn:
		return slog.LevelWarn
	case entities.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
