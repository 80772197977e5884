// Package log provides the process-wide structured logger. It wraps a
// zerolog.Logger configured once through Init and exposes printf-style (f)
// and key/value (w) helpers for every level.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	logTestWriterName = "log_test_writer"
	logTestTime       = "2006-01-02T15:04:05.000Z07:00"
)

var (
	log      zerolog.Logger
	logLevel = "disabled"

	// panicOnInvalidChars makes the logger panic when a message contains
	// invalid UTF-8, so tests catch binary data being logged as strings.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"

	logTestWriter io.Writer = &bytes.Buffer{}
)

func init() {
	// Allow overriding the default log level via $LOG_LEVEL, so that the
	// environment variable can be set when running tests.
	level := "error"
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		level = s
	}
	if err := Init(level, "stderr", nil); err != nil {
		panic(err)
	}
}

// invalidCharChecker wraps a writer and reports log lines carrying invalid
// UTF-8 sequences.
type invalidCharChecker struct{}

func (*invalidCharChecker) Write(p []byte) (int, error) {
	if panicOnInvalidChars && (!utf8.Valid(p) || bytes.Contains(p, []byte(`\ufffd`))) {
		panic(fmt.Sprintf("log line with invalid chars: %q", p))
	}
	return len(p), nil
}

// errorLevelWriter only forwards entries at warn level or above.
type errorLevelWriter struct {
	io.Writer
}

func (w *errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Write(p)
}

// Init configures the logger. The output can be "stdout", "stderr" or a file
// path. When errorOutput is not nil, entries at warn level and above are also
// written there.
func Init(level, output string, errorOutput io.Writer) error {
	var out io.Writer
	outputs := []io.Writer{}
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cannot create log output: %w", err)
		}
		out = f
	}
	if output == "stdout" || output == "stderr" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
		}
	}
	outputs = append(outputs, out)
	if errorOutput != nil {
		outputs = append(outputs, &errorLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: time.RFC3339Nano,
			NoColor:    true,
		}})
	}
	outputs = append(outputs, &invalidCharChecker{})

	zerolog.TimeFieldFormat = logTestTime
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}

	// skip this package's frame when reporting the caller
	log = zerolog.New(zerolog.MultiLevelWriter(outputs...)).
		With().Timestamp().CallerWithSkipFrameCount(3).Logger()

	switch strings.ToLower(level) {
	case LogLevelDebug:
		log = log.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		log = log.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		log = log.Level(zerolog.WarnLevel)
	case LogLevelError:
		log = log.Level(zerolog.ErrorLevel)
	default:
		return fmt.Errorf("invalid log level: %q", level)
	}
	logLevel = strings.ToLower(level)
	return nil
}

// Level returns the current log level.
func Level() string {
	return logLevel
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return &log
}

// Debug sends a debug level log message
func Debug(args ...any) {
	if log.GetLevel() > zerolog.DebugLevel {
		return
	}
	log.Debug().Msg(fmt.Sprint(args...))
}

// Info sends an info level log message
func Info(args ...any) {
	log.Info().Msg(fmt.Sprint(args...))
}

// Warn sends a warn level log message
func Warn(args ...any) {
	log.Warn().Msg(fmt.Sprint(args...))
}

// Error sends an error level log message
func Error(args ...any) {
	log.Error().Msg(fmt.Sprint(args...))
}

// Fatal sends a fatal level log message and exits the process.
func Fatal(args ...any) {
	log.Fatal().Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
}

// Debugf sends a formatted debug level log message
func Debugf(template string, args ...any) {
	log.Debug().Msgf(template, args...)
}

// Infof sends a formatted info level log message
func Infof(template string, args ...any) {
	log.Info().Msgf(template, args...)
}

// Warnf sends a formatted warn level log message
func Warnf(template string, args ...any) {
	log.Warn().Msgf(template, args...)
}

// Errorf sends a formatted error level log message
func Errorf(template string, args ...any) {
	log.Error().Msgf(template, args...)
}

// Fatalf sends a formatted fatal level log message and exits the process.
func Fatalf(template string, args ...any) {
	Fatal(fmt.Sprintf(template, args...))
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	log.Debug().Fields(keyvalues).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	log.Info().Fields(keyvalues).Msg(msg)
}

// Warnw sends a warning level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	log.Warn().Fields(keyvalues).Msg(msg)
}

// Errorw sends an error level log message with a special format for errors.
func Errorw(err error, msg string, keyvalues ...any) {
	log.Error().Err(err).Fields(keyvalues).Msg(msg)
}
