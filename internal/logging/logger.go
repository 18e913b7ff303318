package logging

import (
	"log/slog"
	"os"
)

// Setup initializes the global slog logger with JSON output to stdout.
func Setup() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// Install makes the default logger fan out to stdout and pg, tagging every
// record with service.
func Install(service string, pg *PGHandler) *slog.Logger {
	logger := slog.New(NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pg,
	)).With("service", service)
	slog.SetDefault(logger)
	return logger
}
