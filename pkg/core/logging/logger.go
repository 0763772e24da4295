// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     logging
// Description: Named, leveled, key-value structured logger
// License:     MIT
// ============================================================================

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Format selects the output encoding
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	defaultMu     sync.RWMutex
	defaultOut    io.Writer = os.Stderr
	defaultLevel            = LevelInfo
	defaultFormat           = FormatText
)

// SetOutput changes the output writer for all loggers created afterwards
// and for loggers that have not overridden their output.
func SetOutput(w io.Writer) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOut = w
}

// SetLevel changes the default level for all loggers
func SetLevel(l Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLevel = l
}

// SetFormat changes the default output format
func SetFormat(f Format) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultFormat = f
}

// Logger is a named logger with structured key-value output
type Logger struct {
	mu     sync.Mutex
	name   string
	level  *Level  // nil = follow default
	out    io.Writer // nil = follow default
	format *Format
	fields []any
}

// New creates a new named logger following the package defaults
func New(name string) *Logger {
	return &Logger{name: name}
}

// WithLevel returns a copy of the logger pinned to the given level
func (l *Logger) WithLevel(level Level) *Logger {
	c := l.clone()
	c.level = &level
	return c
}

// WithOutput returns a copy of the logger writing to w
func (l *Logger) WithOutput(w io.Writer) *Logger {
	c := l.clone()
	c.out = w
	return c
}

// With returns a copy of the logger with fields attached to every entry
func (l *Logger) With(keysAndValues ...any) *Logger {
	c := l.clone()
	c.fields = append(c.fields, keysAndValues...)
	return c
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) clone() *Logger {
	return &Logger{
		name:   l.name,
		level:  l.level,
		out:    l.out,
		format: l.format,
		fields: append([]any(nil), l.fields...),
	}
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.log(LevelDebug, msg, keysAndValues)
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.log(LevelInfo, msg, keysAndValues)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.log(LevelWarn, msg, keysAndValues)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *Logger) log(level Level, msg string, keysAndValues []any) {
	defaultMu.RLock()
	out := defaultOut
	min := defaultLevel
	format := defaultFormat
	defaultMu.RUnlock()

	if l.out != nil {
		out = l.out
	}
	if l.level != nil {
		min = *l.level
	}
	if l.format != nil {
		format = *l.format
	}
	if level < min {
		return
	}

	kv := append(append([]any(nil), l.fields...), keysAndValues...)

	var line []byte
	switch format {
	case FormatJSON:
		line = l.encodeJSON(level, msg, kv)
	default:
		line = l.encodeText(level, msg, kv)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = out.Write(line)
}

func (l *Logger) encodeText(level Level, msg string, kv []any) []byte {
	buf := fmt.Sprintf("%s %-5s [%s] %s",
		time.Now().Format("2006-01-02T15:04:05.000"),
		level.String(),
		l.name,
		msg,
	)
	for i := 0; i+1 < len(kv); i += 2 {
		buf += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 != 0 {
		buf += fmt.Sprintf(" %v=?", kv[len(kv)-1])
	}
	return []byte(buf + "\n")
}

func (l *Logger) encodeJSON(level Level, msg string, kv []any) []byte {
	entry := map[string]any{
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"level":     level.String(),
		"logger":    l.name,
		"message":   msg,
	}
	if len(kv) > 0 {
		fields := make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			fields[fmt.Sprintf("%v", kv[i])] = kv[i+1]
		}
		entry["fields"] = fields
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return l.encodeText(level, msg, kv)
	}
	return append(data, '\n')
}
