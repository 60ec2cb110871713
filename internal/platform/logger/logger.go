// Package logger builds the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a slog logger writing to stdout. Format "text" uses the
// tinted handler for local development; anything else emits JSON for log
// shippers.
func New(format string) *slog.Logger {
	if format == "text" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
