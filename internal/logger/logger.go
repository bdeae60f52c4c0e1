// Package logger provides a process-wide structured logger. It mirrors the
// teacher's singleton logger shape but backs it with zerolog instead of
// log/slog.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	log  zerolog.Logger
)

// Options configures the global logger. Zero value is the default: info
// level, JSON output to stdout.
type Options struct {
	Level      string // debug, info, warn, error
	PrettyText bool   // human-readable console output instead of JSON
	Output     io.Writer
}

// Init configures the global logger. Safe to call multiple times; only the
// first call takes effect, matching the teacher's once-guarded init.
func Init(opts Options) {
	once.Do(func() {
		level, err := zerolog.ParseLevel(opts.Level)
		if err != nil || level == zerolog.NoLevel {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		out := opts.Output
		if out == nil {
			out = os.Stdout
		}
		if opts.PrettyText {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		}
		log = zerolog.New(out).With().Timestamp().Logger()
	})
}

func ensureInit() {
	once.Do(func() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
}

// Fields is a structured-field bag passed to the level helpers below.
type Fields map[string]interface{}

func withFields(e *zerolog.Event, fields Fields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

// Debug logs a debug-level structured message.
func Debug(msg string, fields Fields) {
	ensureInit()
	withFields(log.Debug(), fields).Msg(msg)
}

// Info logs an info-level structured message.
func Info(msg string, fields Fields) {
	ensureInit()
	withFields(log.Info(), fields).Msg(msg)
}

// Warn logs a warn-level structured message.
func Warn(msg string, fields Fields) {
	ensureInit()
	withFields(log.Warn(), fields).Msg(msg)
}

// Error logs an error-level structured message. If err is non-nil it is
// attached under the "error" field.
func Error(msg string, err error, fields Fields) {
	ensureInit()
	e := log.Error()
	if err != nil {
		e = e.Err(err)
	}
	withFields(e, fields).Msg(msg)
}

// Get returns the underlying zerolog.Logger for callers that need direct
// access (e.g. to derive a sub-logger with With()).
func Get() zerolog.Logger {
	ensureInit()
	return log
}
