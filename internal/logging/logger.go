package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Output formats understood by New.
const (
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// Logger provides structured logging with redaction support.
// It is passed explicitly to the components that log; there is no package-level instance.
type Logger struct {
	base kitlog.Logger
}

// New creates a logger writing to stderr in the given format.
func New(debug bool, format string) *Logger {
	return NewWithWriter(os.Stderr, debug, format)
}

// NewWithWriter creates a logger writing to w. Unknown formats fall back to logfmt.
func NewWithWriter(w io.Writer, debug bool, format string) *Logger {
	sync := kitlog.NewSyncWriter(w)

	var base kitlog.Logger
	switch strings.ToLower(format) {
	case FormatJSON:
		base = kitlog.NewJSONLogger(sync)
	default:
		base = kitlog.NewLogfmtLogger(sync)
	}
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC)

	allow := level.AllowInfo()
	if debug {
		allow = level.AllowDebug()
	}

	return &Logger{base: level.NewFilter(base, allow)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{base: kitlog.NewNopLogger()}
}

// With returns a child logger that adds keyvals to every line.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{base: kitlog.With(l.base, keyvals...)}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	_ = level.Info(l.base).Log("msg", fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	_ = level.Warn(l.base).Log("msg", fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	_ = level.Error(l.base).Log("msg", fmt.Sprintf(format, args...))
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	_ = level.Debug(l.base).Log("msg", fmt.Sprintf(format, args...))
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}
