package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is a leveled console logger. The engine and its collaborators take
// a *Logger in their Config; nil falls back to the process default.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     LogLevel
	useColors bool
}

// NewLogger creates a logger writing to out at the given minimum level
func NewLogger(out io.Writer, level LogLevel) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		out:       out,
		level:     level,
		useColors: out == os.Stderr && IsTerminal(os.Stderr.Fd()),
	}
}

var defaultLogger = NewLogger(os.Stderr, LevelInfo)

// Default returns the process-wide logger used by the package-level helpers
func Default() *Logger {
	return defaultLogger
}

// OrDefault returns l, or the default logger when l is nil
func OrDefault(l *Logger) *Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}

// SetLevel sets the minimum log level to display
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the current minimum level
func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetVerbose enables verbose (debug) logging
func (l *Logger) SetVerbose(verbose bool) {
	if verbose {
		l.SetLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func (l *Logger) SetQuiet(quiet bool) {
	if quiet {
		l.SetLevel(LevelError)
	}
}

// SetColors enables or disables colored output
func (l *Logger) SetColors(enabled bool) {
	l.mu.Lock()
	l.useColors = enabled
	l.mu.Unlock()
}

// IsQuiet reports whether only errors are shown
func (l *Logger) IsQuiet() bool {
	return l.Level() >= LevelError
}

func (l *Logger) write(level LogLevel, color, tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	ts := timestamp()
	if l.useColors {
		ts = color + ts + "\033[0m"
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s %s %s\n", ts, tag, msg)
}

// Debugf logs debug messages
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.write(LevelDebug, "\033[90m", "[DEBUG]", format, args...)
}

// Infof logs informational messages
func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(LevelInfo, "\033[36m", "[INFO] ", format, args...)
}

// Warnf logs warning messages
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.write(LevelWarn, "\033[33m", "[WARN] ", format, args...)
}

// Errorf logs error messages
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.write(LevelError, "\033[31m", "[ERROR]", format, args...)
}

// Successf logs success messages (shown unless quiet)
func (l *Logger) Successf(format string, args ...interface{}) {
	l.write(LevelInfo, "\033[32m", "[OK]   ", format, args...)
}

// SetVerbose enables verbose logging on the default logger
func SetVerbose(verbose bool) { defaultLogger.SetVerbose(verbose) }

// SetQuiet enables quiet mode on the default logger
func SetQuiet(quiet bool) { defaultLogger.SetQuiet(quiet) }

// IsQuiet reports whether the default logger is in quiet mode
func IsQuiet() bool { return defaultLogger.IsQuiet() }

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) { defaultLogger.Debugf(format, args...) }

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) { defaultLogger.Infof(format, args...) }

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) { defaultLogger.Warnf(format, args...) }

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) { defaultLogger.Errorf(format, args...) }

// SuccessLog logs success messages (always shown unless quiet)
func SuccessLog(format string, args ...interface{}) { defaultLogger.Successf(format, args...) }

func timestamp() string {
	return time.Now().Format("15:04:05")
}
