package agent

import (
	"context"
	"sync"

	"github.com/DewminaUdayashan/meridian/pkg/models"
)

// AuditChannel names one of the two pub/sub channels an AuditBus fans
// every event out to.
type AuditChannel string

const (
	// AuditChannelLog carries every event as a structured per-trace
	// record -- this is the channel the dashboard websocket bridge tails.
	AuditChannelLog AuditChannel = "log"

	// AuditChannelSecurity carries the subset of events relevant to
	// access control and credential health: run errors, tool failures,
	// and tool timeouts.
	AuditChannelSecurity AuditChannel = "security"
)

// AuditBus is a process-local pub/sub fanning every Agent Runtime event
// out to the log channel and, when it's security-relevant, the security
// channel too. It is an EventSink itself, so it drops into an
// EventEmitter (directly, or composed via MultiSink) the same way any
// other sink does.
type AuditBus struct {
	mu          sync.Mutex
	subscribers map[AuditChannel][]chan models.AgentEvent
	buffer      map[AuditChannel][]models.AgentEvent
}

// NewAuditBus creates an empty bus with both channels ready to subscribe to.
func NewAuditBus() *AuditBus {
	return &AuditBus{
		subscribers: make(map[AuditChannel][]chan models.AgentEvent),
		buffer:      make(map[AuditChannel][]models.AgentEvent),
	}
}

// Subscribe returns a channel that receives every event published to ch.
// The channel is buffered; a slow consumer does not block Emit.
func (b *AuditBus) Subscribe(ch AuditChannel) <-chan models.AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(chan models.AgentEvent, 256)
	b.subscribers[ch] = append(b.subscribers[ch], sub)
	return sub
}

// Emit implements EventSink: publishes e to the log channel always, and to
// the security channel when isSecurityEvent reports true. Both are also
// appended to an in-memory buffer for Flush to drain.
func (b *AuditBus) Emit(ctx context.Context, e models.AgentEvent) {
	b.publish(AuditChannelLog, e)
	if isSecurityEvent(e) {
		b.publish(AuditChannelSecurity, e)
	}
}

func (b *AuditBus) publish(ch AuditChannel, e models.AgentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer[ch] = append(b.buffer[ch], e)
	for _, sub := range b.subscribers[ch] {
		select {
		case sub <- e:
		default:
			// Slow consumer: drop rather than block the run. Flush still
			// has the full record for durable storage.
		}
	}
}

// Flush drains and returns every buffered event for ch since the last
// Flush, for a persistent action-log writer to persist durably.
func (b *AuditBus) Flush(ch AuditChannel) []models.AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.buffer[ch]
	b.buffer[ch] = nil
	return drained
}

// isSecurityEvent reports whether an event belongs on the security
// channel: run-level errors/cancellation/timeout and tool failures are
// the ones an access-control or credential-health consumer cares about.
func isSecurityEvent(e models.AgentEvent) bool {
	switch e.Type {
	case models.AgentEventRunError, models.AgentEventRunCancelled, models.AgentEventRunTimedOut, models.AgentEventToolTimedOut:
		return true
	case models.AgentEventToolFinished:
		return e.Tool != nil && !e.Tool.Success
	default:
		return false
	}
}
