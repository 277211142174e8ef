// Package audit defines the audit log sink contract consumed by the core,
// plus a structured-logging fallback implementation for embedders that
// don't wire a dedicated collector.
package audit

import "time"

// Event is a structured audit record emitted by the session core on authz
// failures and by the upstream client on non-retryable errors.
type Event struct {
	EventType string
	Severity  string
	Subject   string
	Resource  string
	Action    string
	Timestamp time.Time
	Details   map[string]any
}

// Severity levels used when constructing Events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Sink receives audit events. Implementations decide where events land
// (file, syslog, a remote collector); the core never persists them itself.
type Sink interface {
	Record(event Event)
}

// NoopSink discards every event. Used when an embedder doesn't wire an
// audit sink but the core still needs a non-nil Sink to call into.
type NoopSink struct{}

// Record implements Sink.
func (NoopSink) Record(Event) {}

// logSink is the structured-logging fallback, used when an embedder hasn't
// wired a dedicated audit collector (syslog, a SIEM, etc).
type logSink struct {
	log logger
}

// logger is the narrow slice of pkg/logger.Logger this sink needs, declared
// locally so this package doesn't import pkg/logger just for a type name in
// a single constructor signature.
type logger interface {
	Warnw(msg string, keysAndValues ...interface{})
}

// NewLogSink builds an audit Sink that writes each event as a structured
// warning-level log line.
func NewLogSink(log logger) Sink {
	return &logSink{log: log}
}

// Record implements Sink.
func (s *logSink) Record(event Event) {
	s.log.Warnw("audit event",
		"eventType", event.EventType,
		"severity", event.Severity,
		"subject", event.Subject,
		"resource", event.Resource,
		"action", event.Action,
		"timestamp", event.Timestamp,
		"details", event.Details,
	)
}
