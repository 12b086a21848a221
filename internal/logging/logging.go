// Package logging provides structured logging with zerolog.
// All logging goes through the category helpers so every line carries a
// component tag.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Category constants for consistent logging categories.
const (
	CategoryApp    = "App"
	CategoryServer = "Server"
	CategoryAgent  = "Agent"
	CategoryTrack  = "Track"
	CategoryBus    = "Bus"
	CategorySTT    = "STT"
	CategoryRoom   = "Room"
	CategoryEvents = "Events"
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Logger()
}

// With returns a logger tagged with a category, for components that hold
// their own logger with extra fields.
func With(category string) zerolog.Logger {
	return log.With().Str("category", category).Logger()
}

// Debug logs a debug message.
func Debug(category, msg string, params ...interface{}) {
	log.Debug().Str("category", category).Msgf(msg, params...)
}

// Info logs an info message.
func Info(category, msg string, params ...interface{}) {
	log.Info().Str("category", category).Msgf(msg, params...)
}

// Warning logs a warning message.
func Warning(category, msg string, params ...interface{}) {
	log.Warn().Str("category", category).Msgf(msg, params...)
}

// Error logs an error message.
func Error(category, msg string, params ...interface{}) {
	log.Error().Str("category", category).Msgf(msg, params...)
}

// Fail logs a fatal-severity message without exiting; callers decide how to
// terminate.
func Fail(category, msg string, params ...interface{}) {
	log.Error().Str("category", category).Bool("fatal", true).Msgf(msg, params...)
}
