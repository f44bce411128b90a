// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New initializes a slog logger and sets it as the default. LOG_FORMAT
// selects the handler: "json" for production, anything else gets the text
// handler with source locations for development.
func New() {
	format := os.Getenv("LOG_FORMAT")

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})
	}

	slog.SetDefault(slog.New(handler))
}
