// Package utils provides shared helpers used across services.
package utils

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// InitLogger initializes the global structured logger.
// Log level is controlled by QUANTFOLIO_LOG_LEVEL (debug, info, warn, error; default info).
// Logs go to stderr and, when the data directory is writable, to quantfolio.log next to it.
func InitLogger() {
	loggerOnce.Do(func() {
		level := slog.LevelInfo
		switch strings.ToLower(os.Getenv("QUANTFOLIO_LOG_LEVEL")) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		var w io.Writer = os.Stderr
		if home, err := os.UserHomeDir(); err == nil {
			dir := filepath.Join(home, ".quantfolio")
			if err := os.MkdirAll(dir, 0o700); err == nil {
				if f, err := os.OpenFile(filepath.Join(dir, "quantfolio.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
					w = io.MultiWriter(os.Stderr, f)
				}
			}
		}

		logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	})
}

// GetLogger returns the global logger, initializing it if needed.
func GetLogger() *slog.Logger {
	if logger == nil {
		InitLogger()
	}
	return logger
}
