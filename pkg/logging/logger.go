// Package logging provides structured logging for omnisync using zerolog.
// Console output is used when stderr is a terminal, JSON otherwise, so a
// sync run piped into a log collector stays machine readable.
//
// Example usage:
//
//	log := logging.Default()
//	log.Info().Str("user_name", "jane@example.com").Msg("Creating user")
//
//	ctx := logging.WithUser(context.Background(), "jane@example.com")
//	logging.FromContext(ctx).Debug().Msg("Resolved remote user")
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultLogger is replaced by the CLI once flags and config are read.
var defaultLogger = NewLoggerFromConfig(envConfig())

// envConfig is the configuration used before the CLI has parsed anything.
func envConfig() *Config {
	cfg := DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = level
	} else if os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
	cfg.AddCaller = parseLevel(cfg.Level) <= zerolog.DebugLevel
	return cfg
}

// Default returns the default global logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault sets the default global logger and zerolog's global log.Logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Debug starts a new debug level event on the default logger.
func Debug() *zerolog.Event {
	return defaultLogger.Debug()
}

// Info starts a new info level event on the default logger.
func Info() *zerolog.Event {
	return defaultLogger.Info()
}

// Warn starts a new warning level event on the default logger.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

// Error starts a new error level event on the default logger.
func Error() *zerolog.Event {
	return defaultLogger.Error()
}
