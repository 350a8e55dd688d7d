package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the JSON logger with trace correlation; dev gets debug
// level, everything else info.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}

	json := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(NewTraceHandler(json))
}
