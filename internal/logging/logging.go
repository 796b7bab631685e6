// Package logging provides the client's structured trace logger and the
// stderr warning logger used across transports, the session layer, and the
// facade. It never writes to stdout: on the stdio transport stdout is the
// protocol channel, and contaminating it would corrupt framing.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is a leveled stderr logger plus an optional JSONL trace file.
// The zero value is a valid, silent Logger (Warnf/Debugf become no-ops
// when Verbose/trace are both false).
type Logger struct {
	mu      sync.Mutex
	verbose bool
	prefix  string

	traceFile *os.File
	traceName string
}

// New creates a Logger. verbose enables Warnf/Debugf to stderr; prefix
// tags every line (e.g. the server identity).
func New(prefix string, verbose bool) *Logger {
	return &Logger{prefix: prefix, verbose: verbose}
}

// EnableTrace opens a JSONL trace file under os.TempDir, mirroring the
// teacher's mcp_trace_<timestamp>.log convention, and returns its path.
func (l *Logger) EnableTrace() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.traceFile != nil {
		return l.traceName, nil
	}

	timestamp := time.Now().Format("20060102_150405")
	name := filepath.Join(os.TempDir(), fmt.Sprintf("mcpgo_trace_%s.log", timestamp))
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("create trace file: %w", err)
	}
	l.traceFile = f
	l.traceName = name
	l.traceLocked("TRACE", "trace logging started", map[string]any{"pid": os.Getpid()})
	return name, nil
}

// DisableTrace closes the trace file, if open.
func (l *Logger) DisableTrace() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.traceFile == nil {
		return nil
	}
	l.traceLocked("TRACE", "trace logging stopped", nil)
	err := l.traceFile.Close()
	l.traceFile = nil
	return err
}

// Trace appends one structured entry to the trace file; a no-op if
// tracing isn't enabled.
func (l *Logger) Trace(level, message string, data any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.traceLocked(level, message, data)
}

func (l *Logger) traceLocked(level, message string, data any) {
	if l.traceFile == nil {
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"level":     level,
		"message":   message,
	}
	if data != nil {
		entry["data"] = data
	}
	enc, err := json.Marshal(entry)
	if err != nil {
		return
	}
	fmt.Fprintf(l.traceFile, "%s\n", enc)
	l.traceFile.Sync()
}

// Warnf writes a warning line to stderr when verbose, and always records
// it to the trace file when tracing is enabled. Used for non-fatal
// conditions the spec calls out as "log and continue": elicitation schema
// violations, deprecated wire keys, dropped responses with no pending
// entry.
func (l *Logger) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.Trace("WARN", msg, nil)
	if l.verbose {
		l.writeStderr("WARN", msg)
	}
}

// Debugf writes a debug line to stderr when verbose, and records it to
// the trace file when tracing is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.Trace("DEBUG", msg, nil)
	if l.verbose {
		l.writeStderr("DEBUG", msg)
	}
}

func (l *Logger) writeStderr(level, msg string) {
	if l.prefix != "" {
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", level, l.prefix, msg)
	} else {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", level, msg)
	}
}
