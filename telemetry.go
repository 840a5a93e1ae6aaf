package stagecraft

import (
	"sync/atomic"
	"time"
)

// Telemetry counts traffic through the message pipeline. The counters are
// atomic so transport goroutines can report alongside the single-threaded
// core; everything else about them is advisory.
type Telemetry struct {
	messagesSubmitted atomic.Uint64
	messagesExecuted  atomic.Uint64
	messagesRejected  atomic.Uint64
	messagesUndone    atomic.Uint64
	bytesSent         atomic.Uint64
	bytesReceived     atomic.Uint64
	lastTickMillis    atomic.Int64
}

// TelemetrySnapshot is the JSON shape served by diagnostics endpoints.
type TelemetrySnapshot struct {
	MessagesSubmitted uint64 `json:"messagesSubmitted"`
	MessagesExecuted  uint64 `json:"messagesExecuted"`
	MessagesRejected  uint64 `json:"messagesRejected"`
	MessagesUndone    uint64 `json:"messagesUndone"`
	BytesSent         uint64 `json:"bytesSent"`
	BytesReceived     uint64 `json:"bytesReceived"`
	TickDuration      int64  `json:"tickDurationMillis"`
}

// NewTelemetry returns a zeroed counter set.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// RecordSubmitted counts a message entering a forum.
func (t *Telemetry) RecordSubmitted() {
	if t == nil {
		return
	}
	t.messagesSubmitted.Add(1)
}

// RecordExecuted counts a message applied to the world.
func (t *Telemetry) RecordExecuted() {
	if t == nil {
		return
	}
	t.messagesExecuted.Add(1)
}

// RecordRejected counts a check veto.
func (t *Telemetry) RecordRejected() {
	if t == nil {
		return
	}
	t.messagesRejected.Add(1)
}

// RecordUndone counts a speculative execution rolled back.
func (t *Telemetry) RecordUndone() {
	if t == nil {
		return
	}
	t.messagesUndone.Add(1)
}

// RecordSent counts outbound wire bytes.
func (t *Telemetry) RecordSent(bytes int) {
	if t == nil || bytes <= 0 {
		return
	}
	t.bytesSent.Add(uint64(bytes))
}

// RecordReceived counts inbound wire bytes.
func (t *Telemetry) RecordReceived(bytes int) {
	if t == nil || bytes <= 0 {
		return
	}
	t.bytesReceived.Add(uint64(bytes))
}

// RecordTickDuration stores the duration of the most recent frame tick.
func (t *Telemetry) RecordTickDuration(d time.Duration) {
	if t == nil {
		return
	}
	millis := d.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.lastTickMillis.Store(millis)
}

// Snapshot copies the counters for serving.
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	if t == nil {
		return TelemetrySnapshot{}
	}
	return TelemetrySnapshot{
		MessagesSubmitted: t.messagesSubmitted.Load(),
		MessagesExecuted:  t.messagesExecuted.Load(),
		MessagesRejected:  t.messagesRejected.Load(),
		MessagesUndone:    t.messagesUndone.Load(),
		BytesSent:         t.bytesSent.Load(),
		BytesReceived:     t.bytesReceived.Load(),
		TickDuration:      t.lastTickMillis.Load(),
	}
}
