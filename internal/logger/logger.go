// Package logger provides the leveled logger used across the proposal
// pipeline. Lines have the form "[timestamp] [LEVEL] message" and go to
// stderr, plus an optional log file. Stdout stays free for the MCP protocol.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger wraps the standard log package with levels and an optional file.
type Logger struct {
	file   *os.File
	logger *log.Logger
	debug  bool
	quiet  bool
	mu     sync.RWMutex
	closed bool
}

// New returns a logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{logger: log.New(w, "", 0)}
}

// NewFile returns a logger writing to stderr and appending to logFile.
func NewFile(logFile string) (*Logger, error) {
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &Logger{
		file:   file,
		logger: log.New(io.MultiWriter(os.Stderr, file), "", 0),
	}, nil
}

// Default returns a logger writing to stderr.
func Default() *Logger {
	return New(os.Stderr)
}

// Discard returns a logger that drops every line.
func Discard() *Logger {
	return New(io.Discard)
}

// SetDebug enables or disables DEBUG lines.
func (l *Logger) SetDebug(on bool) {
	l.mu.Lock()
	l.debug = on
	l.mu.Unlock()
}

// SetQuiet drops INFO and DEBUG lines when on.
func (l *Logger) SetQuiet(on bool) {
	l.mu.Lock()
	l.quiet = on
	l.mu.Unlock()
}

func (l *Logger) logMessage(level, format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}
	if level == "DEBUG" && (!l.debug || l.quiet) {
		return
	}
	if level == "INFO" && l.quiet {
		return
	}

	message := fmt.Sprintf(format, v...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Printf("[%s] [%s] %s", timestamp, level, message)
}

// Printf logs a message at INFO level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logMessage("INFO", format, v...)
}

// Warnf logs a message at WARN level
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logMessage("WARN", format, v...)
}

// Errorf logs a message at ERROR level
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logMessage("ERROR", format, v...)
}

// Debugf logs a message at DEBUG level
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logMessage("DEBUG", format, v...)
}

// Close closes the log file, if any. Later calls log nothing.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
