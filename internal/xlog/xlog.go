// Package xlog wraps zerolog behind a small package-level API so call
// sites read like the rest of the codebase: Infof/Warnf/Errorf/Debugf
// plus a Field-based variant for anything downstream tooling might grep.
package xlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Config controls the global logger.
type Config struct {
	Level  string
	Pretty bool
}

// Init (re)configures the global logger. Call once at startup.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	log = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func Infof(format string, args ...interface{})  { log.Info().Msgf(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warn().Msgf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Error().Msgf(format, args...) }
func Debugf(format string, args ...interface{}) { log.Debug().Msgf(format, args...) }

func Info(msg string)  { log.Info().Msg(msg) }
func Warn(msg string)  { log.Warn().Msg(msg) }
func Error(msg string) { log.Error().Msg(msg) }

// With returns an event builder for structured fields, e.g.:
//
//	xlog.With().Str("pair", "BTC-EUR").Int("cycle", 4).Msg("ranked opportunity")
func With() *zerolog.Event { return log.Info() }

// Err logs at error level with the error attached, using the
// "%w"-wrapped-error style but structured.
func Err(err error, msg string) {
	log.Error().Err(err).Msg(msg)
}

// Fatal logs at fatal level and exits the process — used only at
// startup, before the orchestrator owns the process lifecycle.
func Fatal(err error, msg string) {
	log.Fatal().Err(err).Msg(msg)
}
