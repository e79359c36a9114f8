package logger

import (
	"sync"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	// globalLogger holds the singleton logger instance.
	globalLogger *Logger
	once         sync.Once
)

// Get returns a singleton logger configured with the provided level.
// The first call initializes the logger; subsequent calls ignore the level
// and return the already initialized instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

// Log records a message attributed to a source component at the given
// level. Fire-and-forget: it never blocks or fails the caller.
func (l *Logger) Log(message, source, level string) {
	switch level {
	case DebugLevel:
		l.Debugw(message, "source", source)
	case WarnLevel:
		l.Warnw(message, "source", source)
	case ErrorLevel:
		l.Errorw(message, "source", source)
	default:
		l.Infow(message, "source", source)
	}
}
