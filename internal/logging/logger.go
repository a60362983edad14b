// Package logging provides the logging interface and default implementations for lmdbm.
//
// Design: Five-level interface (Error, Warn, Info, Debug, Fatal). The default
// implementation writes through a logrus.Logger; callers that already run a
// structured logger can wrap it behind the same interface.
//
// Fatalf behavior: logs at error level with a fatal=true field and calls the
// configured FatalHandler. Fatalf does NOT call os.Exit; the embedding
// application decides whether an unrecoverable store error ends the process.
//
// Component namespace prefixes are used for filtering:
//   - [open]  : environment open, mode handling
//   - [grow]  : map size growth and retries
//   - [store] : general store operations
//   - [backup]: environment copies
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrFatal is the sentinel error wrapped by fatal conditions.
// Use errors.Is(err, ErrFatal) to detect fatal errors in returned errors.
var ErrFatal = errors.New("fatal error")

// FatalHandler is called when Fatalf is invoked.
//
// Contract: FatalHandler must be safe for concurrent use.
// Contract: FatalHandler must not call Fatalf (avoid infinite recursion).
type FatalHandler func(msg string)

// Level represents the logging level.
type Level int

const (
	// LevelError logs only errors.
	LevelError Level = iota
	// LevelWarn logs warnings and errors.
	LevelWarn
	// LevelInfo logs info, warnings, and errors.
	LevelInfo
	// LevelDebug logs everything including debug messages.
	LevelDebug
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a logrus level name ("error", "warn", "info", "debug",
// "trace") onto a Level.
func ParseLevel(s string) (Level, error) {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return LevelWarn, err
	}
	switch {
	case lvl <= logrus.ErrorLevel:
		return LevelError, nil
	case lvl == logrus.WarnLevel:
		return LevelWarn, nil
	case lvl == logrus.InfoLevel:
		return LevelInfo, nil
	default:
		return LevelDebug, nil
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// Logger defines the interface for store logging.
//
// Concurrency: DefaultLogger and Discard are safe for concurrent use.
// User-provided Logger implementations MUST be safe for concurrent use,
// as readers on several goroutines may log simultaneously.
type Logger interface {
	// Errorf logs a formatted error message.
	Errorf(format string, args ...any)

	// Warnf logs a formatted warning message.
	Warnf(format string, args ...any)

	// Infof logs a formatted informational message.
	Infof(format string, args ...any)

	// Debugf logs a formatted debug message.
	Debugf(format string, args ...any)

	// Fatalf logs a fatal error and triggers the fatal handler.
	Fatalf(format string, args ...any)
}

// DefaultLogger is the default logger, backed by a logrus.Logger.
// Level is read-only after construction; create a new logger to change it.
type DefaultLogger struct {
	entry        *logrus.Entry
	level        Level
	fatalHandler atomic.Pointer[FatalHandler]
}

// NewDefaultLogger creates a new default logger with the specified level.
// It writes to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return NewLogger(os.Stderr, level)
}

// NewLogger creates a new logger with the specified output and level.
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	var l = logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	l.SetLevel(level.logrusLevel())

	return &DefaultLogger{entry: logrus.NewEntry(l), level: level}
}

// NewLogrusLogger adapts an existing logrus entry, such as one carrying
// application fields. The level follows the entry's logger.
func NewLogrusLogger(entry *logrus.Entry) *DefaultLogger {
	var level = LevelDebug
	switch lvl := entry.Logger.GetLevel(); {
	case lvl <= logrus.ErrorLevel:
		level = LevelError
	case lvl == logrus.WarnLevel:
		level = LevelWarn
	case lvl == logrus.InfoLevel:
		level = LevelInfo
	}
	return &DefaultLogger{entry: entry, level: level}
}

// SetFatalHandler sets the handler called when Fatalf is invoked.
func (l *DefaultLogger) SetFatalHandler(h FatalHandler) {
	l.fatalHandler.Store(&h)
}

// Level returns the logging level.
func (l *DefaultLogger) Level() Level {
	return l.level
}

// Errorf logs a formatted error message.
func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

// Warnf logs a formatted warning message.
func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

// Infof logs a formatted informational message.
func (l *DefaultLogger) Infof(format string, args ...any) {
	l.entry.Infof(format, args...)
}

// Debugf logs a formatted debug message.
func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

// Fatalf logs a fatal error and triggers the fatal handler.
// It is never filtered by level and never exits the process.
func (l *DefaultLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.entry.WithField("fatal", true).Log(logrus.ErrorLevel, msg)

	if h := l.fatalHandler.Load(); h != nil {
		(*h)(msg)
	}
}

// Namespace prefixes for log messages.
const (
	// NSOpen is the namespace for environment open and mode handling.
	NSOpen = "[open] "
	// NSGrow is the namespace for map size growth.
	NSGrow = "[grow] "
	// NSStore is the namespace for general store operations.
	NSStore = "[store] "
	// NSBackup is the namespace for environment copies.
	NSBackup = "[backup] "
)

// IsNil returns true if the logger is nil or a typed-nil.
// A typed-nil occurs when a nil pointer is assigned to an interface:
//
//	var l *MyLogger = nil
//	opts.Logger = l  // Interface is not nil, but underlying pointer is
//
// Calling methods on a typed-nil panics, so this function detects both cases.
func IsNil(l Logger) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrDefault returns the provided logger if it is valid (non-nil and not typed-nil),
// otherwise returns a default WARN-level logger.
func OrDefault(l Logger) Logger {
	if IsNil(l) {
		return NewDefaultLogger(LevelWarn)
	}
	return l
}
