// Package logging provides structured logging configuration using log/slog.
//
// Import runs log with a per-file logger carrying batch_id, file, and
// file_type fields so all entries for one ingestion run can be correlated.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForImport returns a logger that carries the identifying fields of one
// import run through every log entry it emits.
//
// Usage:
//
//	logger := logging.ForImport(batchID, fileName, fileType)
//	logger.Info("import started")
//	// ... later ...
//	logger.Info("import completed", "processed", n)
func ForImport(batchID, fileName, fileType string) *slog.Logger {
	return slog.Default().With(
		"batch_id", batchID,
		"file", fileName,
		"file_type", fileType,
	)
}
