// Package log is the leveled logger used across melspec. Messages go to a
// single process-wide sink; components tag their lines through Named.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is the severity of a log message.
type Level uint32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name. Unknown names return
// LevelInfo and false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var (
	currentLevel atomic.Uint32
	sink         atomic.Pointer[stdlog.Logger]
	exit         = os.Exit
)

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	sink.Store(stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds))
}

func SetLevel(level Level) { currentLevel.Store(uint32(level)) }

func GetLevel() Level { return Level(currentLevel.Load()) }

// Enabled reports whether messages at level are currently written.
func Enabled(level Level) bool { return level >= GetLevel() }

func output(level Level, component, msg string) {
	if !Enabled(level) && level != LevelFatal {
		return
	}
	if component != "" {
		msg = component + ": " + msg
	}
	sink.Load().Printf("[%-5s] %s", level, msg)
}

// Logger tags every message with a component name.
type Logger struct {
	component string
}

// Named returns a Logger whose lines are prefixed with component.
func Named(component string) *Logger { return &Logger{component: component} }

func (l *Logger) Debugf(format string, v ...any) {
	if Enabled(LevelDebug) {
		output(LevelDebug, l.component, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Infof(format string, v ...any) {
	if Enabled(LevelInfo) {
		output(LevelInfo, l.component, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Warnf(format string, v ...any) {
	if Enabled(LevelWarn) {
		output(LevelWarn, l.component, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Errorf(format string, v ...any) {
	if Enabled(LevelError) {
		output(LevelError, l.component, fmt.Sprintf(format, v...))
	}
}

var root = &Logger{}

// Debugf logs a formatted debug message.
func Debugf(format string, v ...any) { root.Debugf(format, v...) }

// Infof logs a formatted info message.
func Infof(format string, v ...any) { root.Infof(format, v...) }

// Warnf logs a formatted warning.
func Warnf(format string, v ...any) { root.Warnf(format, v...) }

// Errorf logs a formatted error.
func Errorf(format string, v ...any) { root.Errorf(format, v...) }

// Fatalf always logs, then exits with status 1.
func Fatalf(format string, v ...any) {
	output(LevelFatal, "", fmt.Sprintf(format, v...))
	exit(1)
}
