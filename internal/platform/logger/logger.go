package logger

import (
	"log/slog"
	"os"
)

// New returns the JSON structured logger the whole service shares.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
