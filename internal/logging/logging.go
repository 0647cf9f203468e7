// Package logging provides a small leveled logger for the engine.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger is a simple leveled logger that writes to a single destination.
type Logger struct {
	*log.Logger
	debug bool
}

// NewLogger creates a logger writing to stdout.
func NewLogger() *Logger {
	return New(os.Stdout, false)
}

// New creates a logger writing to w; debug enables Debug output.
func New(w io.Writer, debug bool) *Logger {
	return &Logger{Logger: log.New(w, "", log.LstdFlags), debug: debug}
}

// Nop creates a logger that discards everything; used in tests.
func Nop() *Logger {
	return New(io.Discard, false)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.Printf("INFO: "+msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.Printf("ERROR: "+msg, args...)
}

// Debug logs a debug message when debug logging is enabled.
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.Printf("DEBUG: "+msg, args...)
	}
}
