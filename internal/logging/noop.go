package logging

// NoOpLogger discards all logs (useful for testing)
type NoOpLogger struct{}

// NewNoOp creates a new no-op logger
func NewNoOp() Logger {
	return &NoOpLogger{}
}

// Debug discards the message
func (n *NoOpLogger) Debug(msg string, fields ...interface{}) {}

// Info discards the message
func (n *NoOpLogger) Info(msg string, fields ...interface{}) {}

// Warn discards the message
func (n *NoOpLogger) Warn(msg string, fields ...interface{}) {}

// Error discards the message
func (n *NoOpLogger) Error(msg string, fields ...interface{}) {}

// WithComponent returns the logger unchanged
func (n *NoOpLogger) WithComponent(component string) Logger { return n }

// WithSweepID returns the logger unchanged
func (n *NoOpLogger) WithSweepID(sweepID string) Logger { return n }
