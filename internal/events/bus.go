package events

import (
	"context"
	"sync"
	"time"

	"stealthtrack/internal/constants"
	"stealthtrack/internal/logger"
)

// ContactIdentified is published the first time a contact transitions
// from anonymous to identified. Attributes is the flattened view of the
// contact at the moment of identification.
type ContactIdentified struct {
	ContactID  string
	Attributes map[string]string
	OccurredAt time.Time
}

// Bus is a single-process publish/subscribe channel for identification
// events. Publish never blocks the tracking path: when a subscriber
// falls behind the event is dropped and counted in the log.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan ContactIdentified
	closed      bool
	log         logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe returns a channel that receives every event published after
// the call. The channel is closed when the bus shuts down.
func (b *Bus) Subscribe() <-chan ContactIdentified {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ContactIdentified, constants.EventBusBuffer)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

func (b *Bus) Publish(ctx context.Context, event ContactIdentified) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.log.WarnwCtx(ctx, "Event bus subscriber full, dropping event",
				"contact_id", event.ContactID,
			)
		}
	}
}

// Close stops delivery and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
