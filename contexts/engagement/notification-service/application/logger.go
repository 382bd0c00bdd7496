package application

import (
	"log/slog"
	"os"
)

// ResolveLogger falls back to a stderr JSON logger when none is injected.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
