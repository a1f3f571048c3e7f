package core

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var loggerInstance = NewDevelopmentLogger()

// SetLogger sets the global logger instance.
func SetLogger(logger *Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance.
func GetLogger() *Logger {
	return loggerInstance
}

// Logger wraps zerolog behind the small structured API the rest of the
// codebase uses: With(attrs) for bound fields, Info/Infof-style methods
// for emitting.
type Logger struct {
	zl zerolog.Logger
}

// NewDevelopmentLogger creates a logger with pretty console output.
func NewDevelopmentLogger() *Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return &Logger{zl: zerolog.New(writer).With().Timestamp().Logger()}
}

// NewJSONLogger creates a logger emitting structured JSON lines, for
// running under a supervisor that collects logs.
func NewJSONLogger() *Logger {
	return &Logger{zl: zerolog.New(os.Stderr).With().Timestamp().Logger()}
}

// With returns a child logger with the given attributes bound to every line.
func (l *Logger) With(attrs map[string]any) *Logger {
	zctx := l.zl.With()
	for k, v := range attrs {
		zctx = zctx.Interface(k, v)
	}
	return &Logger{zl: zctx.Logger()}
}

func (l *Logger) emit(ev *zerolog.Event, msg string, args []any) {
	if len(args) > 0 && isKeyValuePairs(args) {
		for i := 0; i < len(args)-1; i += 2 {
			key, _ := args[i].(string)
			ev = ev.Interface(key, args[i+1])
		}
		ev.Msg(msg)
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	ev.Msg(msg)
}

// isKeyValuePairs returns true if args look like slog-style key-value
// pairs: even count and every key (even index) is a string.
func isKeyValuePairs(args []any) bool {
	if len(args) == 0 || len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Debug(msg string, args ...any) { l.emit(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(l.zl.Error(), msg, args) }

// Fatal logs the message and exits the process.
func (l *Logger) Fatal(msg string, args ...any) { l.emit(l.zl.Fatal(), msg, args) }

func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
func (l *Logger) Fatalf(format string, args ...any) { l.zl.Fatal().Msgf(format, args...) }
