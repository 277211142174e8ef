package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeLogger struct {
	msg  string
	kvs  []interface{}
}

func (f *fakeLogger) Warnw(msg string, keysAndValues ...interface{}) {
	f.msg = msg
	f.kvs = keysAndValues
}

func TestLogSinkRecordsEventFields(t *testing.T) {
	fl := &fakeLogger{}
	sink := NewLogSink(fl)

	sink.Record(Event{
		EventType: "rpc.unauthorized",
		Severity:  SeverityWarning,
		Subject:   "client-1",
		Action:    "issue.delete",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "audit event", fl.msg)
	assert.Contains(t, fl.kvs, "rpc.unauthorized")
	assert.Contains(t, fl.kvs, "issue.delete")
}

func TestNoopSinkDiscardsEvents(t *testing.T) {
	var sink Sink = NoopSink{}
	assert.NotPanics(t, func() {
		sink.Record(Event{EventType: "x"})
	})
}
