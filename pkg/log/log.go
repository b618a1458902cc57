// Package log provides named loggers for ordframe components.
//
// Every line is prefixed with the component name ("[hiro>] fetched 60
// inscriptions") and carries a level. Debug output can be turned on for
// everything (SetGlobalDebug) or for a single component (EnableDebugFor).
// A minimum level filters Info/Warn output for quiet frame deployments.
//
// Usage:
//
//	l := log.ForService("viewer")
//	l.Infof("session %s started with %d items", id, n)
//	l.Debugf("press released after %s", d)
//
// The package name collides with the standard library "log"; alias one of
// them when both are needed.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level names.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelRank = map[string]int32{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger is a named logger.
type Logger struct {
	name string
	std  *log.Logger
}

// writerHolder keeps atomic.Value storing one concrete type.
type writerHolder struct {
	w io.Writer
}

var (
	globalDebug  atomic.Bool
	minLevel     atomic.Int32 // rank of the lowest non-debug level printed
	serviceDebug sync.Map     // map[string]*atomic.Bool
	loggers      sync.Map     // map[string]*Logger
	outputWriter atomic.Value // writerHolder
)

func init() {
	outputWriter.Store(writerHolder{w: os.Stderr})
	minLevel.Store(levelRank[LevelInfo])
}

// ForService returns (and memoizes) the logger for a component.
func ForService(name string) *Logger {
	if name == "" {
		name = "ordframe"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	w := outputWriter.Load().(writerHolder).w
	logger := &Logger{name: name, std: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
	actual, _ := loggers.LoadOrStore(name, logger)
	return actual.(*Logger)
}

// SetGlobalDebug enables or disables debug logging for every component.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

// EnableDebugFor enables debug logging for one component.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
}

// DisableDebugFor disables debug logging for one component.
func DisableDebugFor(name string) {
	if val, ok := serviceDebug.Load(name); ok {
		val.(*atomic.Bool).Store(false)
	}
}

// DebugEnabledFor reports whether debug output is on for name.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := serviceDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

// SetLevel sets the minimum level for Info/Warn/Error output. "debug" also
// turns global debug on. Unknown names return an error and leave the level
// unchanged.
func SetLevel(level string) error {
	upper := strings.ToUpper(strings.TrimSpace(level))
	if upper == "" {
		return nil
	}
	rank, ok := levelRank[upper]
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if upper == LevelDebug {
		SetGlobalDebug(true)
		rank = levelRank[LevelInfo]
	}
	minLevel.Store(rank)
	return nil
}

// SetOutput redirects all loggers, existing ones included.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	outputWriter.Store(writerHolder{w: w})
	loggers.Range(func(_, v any) bool {
		v.(*Logger).std.SetOutput(w)
		return true
	})
}

// TeeToFile adds path as a second destination next to stderr. The returned
// closer releases the file.
func TeeToFile(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

func (l *Logger) emit(level, msg string) {
	if level != LevelDebug && levelRank[level] < minLevel.Load() {
		return
	}
	l.std.Println(level + " [" + l.name + ">] " + msg)
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.emit(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...any) {
	l.emit(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs an error.
func (l *Logger) Errorf(format string, args ...any) {
	l.emit(LevelError, fmt.Sprintf(format, args...))
}

// Debugf logs only when debug is enabled for this logger.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.emit(LevelDebug, fmt.Sprintf(format, args...))
}
