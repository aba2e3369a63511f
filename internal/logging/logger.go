// Package logging provides structured logging for the prediction and
// monitoring engine, with per-component scoping and sweep-scoped IDs so
// every alert and assessment can be traced back to the sweep that
// produced it.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the engine-wide structured logging interface
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	WithComponent(component string) Logger
	WithSweepID(sweepID string) Logger
}

// LogLevel represents logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// ParseLevel converts a level name to a LogLevel, defaulting to INFO
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(name) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// logEntry is the serialized form of one log line
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	SweepID   string                 `json:"sweep_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// StructuredLogger writes JSON (or plain text) log lines to stderr
type StructuredLogger struct {
	level     LogLevel
	component string
	sweepID   string
	useJSON   bool
}

// New creates a structured logger. Output format is JSON unless
// LOG_JSON is set to a false value.
func New(level LogLevel) Logger {
	return &StructuredLogger{
		level:   level,
		useJSON: envBool("LOG_JSON", true),
	}
}

// NewSweepID returns a fresh identifier for one monitoring sweep
func NewSweepID() string {
	return uuid.New().String()
}

func envBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

// WithComponent returns a logger scoped to a component name
func (l *StructuredLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

// WithSweepID returns a logger scoped to one monitoring sweep
func (l *StructuredLogger) WithSweepID(sweepID string) Logger {
	clone := *l
	clone.sweepID = sweepID
	return &clone
}

// Debug logs a debug message
func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	if l.level <= DEBUG {
		l.write("DEBUG", msg, fields...)
	}
}

// Info logs an info message
func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	if l.level <= INFO {
		l.write("INFO", msg, fields...)
	}
}

// Warn logs a warning message
func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	if l.level <= WARN {
		l.write("WARN", msg, fields...)
	}
}

// Error logs an error message
func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	if l.level <= ERROR {
		l.write("ERROR", msg, fields...)
	}
}

func (l *StructuredLogger) write(level, msg string, fields ...interface{}) {
	fieldMap := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		fieldMap[fmt.Sprintf("%v", fields[i])] = fields[i+1]
	}
	if len(fields)%2 != 0 {
		fieldMap["extra"] = fields[len(fields)-1]
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Component: l.component,
		SweepID:   l.sweepID,
		Fields:    fieldMap,
	}

	if l.useJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	parts := []string{entry.Timestamp, "[" + level + "]"}
	if entry.Component != "" {
		parts = append(parts, "component:"+entry.Component)
	}
	if entry.SweepID != "" && len(entry.SweepID) >= 8 {
		parts = append(parts, "sweep:"+entry.SweepID[:8])
	}
	parts = append(parts, msg)
	for k, v := range fieldMap {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	fmt.Fprintln(os.Stderr, strings.Join(parts, " "))
}
