// Package zlog holds the process-wide zerolog logger.
package zlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global application logger. It is usable before Init.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures Logger to write to stdout in the given format ("console" or "json").
func Init(format string) {
	Logger = New(os.Stdout, format)
}

// New builds a timestamped logger writing to w.
func New(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel sets the global minimum level from its name (debug, info, warn, error).
func SetLevel(level string) error {
	if level == "" {
		level = "info"
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	return nil
}
