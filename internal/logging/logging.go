// Package logging builds the service's structured loggers.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// New creates a structured logger for the given level and format.
//
// Features:
//   - Structured JSON output by default (log-aggregator friendly)
//   - Pretty console output for development (format "pretty")
//   - Timestamp in RFC3339 format and caller information
//
// Components derive their own loggers from the returned one:
//
//	log := logging.New("info", "json")
//	rankLog := log.With().Str("component", "ranking").Logger()
func New(level, format string) zerolog.Logger {
	var output io.Writer = os.Stdout

	var lvl zerolog.Level
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "hotelier").
		Logger()
}

// RecoverPanic logs a recovered panic with its stack trace and lets the
// goroutine die without taking the process down. Use in defer blocks of
// worker and scheduler goroutines.
func RecoverPanic(logger zerolog.Logger, goroutineName string) {
	if r := recover(); r != nil {
		logger.Error().
			Str("goroutine", goroutineName).
			Interface("panic_value", r).
			Str("stack_trace", string(debug.Stack())).
			Msg("goroutine panic recovered")
	}
}
