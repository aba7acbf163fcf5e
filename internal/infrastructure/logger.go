package infrastructure

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/m-silliman/svc-queue-monitor/internal/config"
)

// Logger wraps zerolog to keep the rest of the codebase decoupled from the
// concrete logging library.
type Logger struct {
	*zerolog.Logger
}

// NewLogger creates a service-wide logger from the logging configuration.
func NewLogger(cfg config.LoggingConfig, serviceName string) Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if strings.EqualFold(cfg.Format, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	logger = logger.Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return Logger{Logger: &logger}
}

// NopLogger returns a logger that discards everything. Used in tests.
func NopLogger() Logger {
	nop := zerolog.Nop()

	return Logger{Logger: &nop}
}
