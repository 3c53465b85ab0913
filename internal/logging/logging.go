package logging

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once
	levelMu      sync.RWMutex
)

// ParseLevel converts a level name to a LogLevel. Unknown names map to
// LevelInfo and ok is false.
func ParseLevel(name string) (level LogLevel, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// levelFromEnv resolves the level from DEBUG and LOG_LEVEL
func levelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
	return level
}

func initLevel() {
	levelOnce.Do(func() {
		levelMu.Lock()
		currentLevel = levelFromEnv()
		levelMu.Unlock()
	})
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	levelMu.RLock()
	defer levelMu.RUnlock()
	return currentLevel
}

// SetLevel overrides the level read from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	levelMu.Lock()
	currentLevel = level
	levelMu.Unlock()
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return Enabled(LevelDebug)
}

var levelTags = [...]string{"[DEBUG] ", "[INFO] ", "[WARN] ", "[ERROR] "}

// Enabled reports whether messages at level are written.
func Enabled(level LogLevel) bool {
	return GetLevel() <= level
}

// Logf logs at level. Debug, Info, Warn and Error are shorthands.
func Logf(level LogLevel, format string, args ...interface{}) {
	if level < LevelDebug || level > LevelError || !Enabled(level) {
		return
	}
	log.Printf(levelTags[level]+format, args...)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) { Logf(LevelDebug, format, args...) }

// Info logs an info message
func Info(format string, args ...interface{}) { Logf(LevelInfo, format, args...) }

// Warn logs a warning message
func Warn(format string, args ...interface{}) { Logf(LevelWarn, format, args...) }

// Error logs an error message
func Error(format string, args ...interface{}) { Logf(LevelError, format, args...) }

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// LineWriter logs each complete line written to it at a fixed level, with
// a prefix naming the source (an external command's stderr, for example).
// Close flushes a trailing unterminated line.
type LineWriter struct {
	level  LogLevel
	prefix string
	mu     sync.Mutex
	buf    []byte
}

// NewLineWriter returns a LineWriter logging at level with prefix.
func NewLineWriter(level LogLevel, prefix string) *LineWriter {
	return &LineWriter{level: level, prefix: prefix}
}

// Write implements io.Writer. It never fails.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Close flushes any buffered partial line.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit(w.buf)
	w.buf = nil
	return nil
}

func (w *LineWriter) emit(line []byte) {
	if text := strings.TrimSpace(string(line)); text != "" {
		Logf(w.level, "%s: %s", w.prefix, text)
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
