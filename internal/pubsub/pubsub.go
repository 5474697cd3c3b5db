// Package pubsub fans session and match events out to in-process listeners
// (the SSE stream, the analytics mirror) and, when configured, through NATS
// JetStream so every instance sees them.
package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

// Event is one notification on the bus
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	TS      int64                  `json:"ts,omitempty"`
}

// Upstream is a shared transport behind the local bus (e.g. NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// Replayer is implemented by upstreams that keep recent history
type Replayer interface {
	ReplayMessages(ch chan Event, count int)
}

// Bus is a publish-subscribe hub with optional upstream
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	upstream    Upstream
}

// New creates a bus that only delivers locally
func New() *Bus {
	return &Bus{
		subscribers: []chan Event{},
	}
}

// NewWithUpstream creates a bus that publishes through upstream. Events coming
// back from upstream, including our own, are delivered to local subscribers.
func NewWithUpstream(upstream Upstream) *Bus {
	b := &Bus{
		subscribers: []chan Event{},
		upstream:    upstream,
	}

	go func() {
		ch := upstream.Subscribe()
		for event := range ch {
			b.publishLocal(event)
		}
		logger.Debug("PubSub: Upstream channel closed")
	}()

	return b
}

// Subscribe adds a subscriber
func (b *Bus) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 10)
	b.subscribers = append(b.subscribers, ch)
	logger.Debug("PubSub: New subscriber added", "totalSubscribers", len(b.subscribers))
	return ch
}

// Unsubscribe removes and closes a subscriber
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			close(ch)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
}

// Publish stamps and sends an event
func (b *Bus) Publish(event Event) {
	if event.TS == 0 {
		event.TS = time.Now().UnixMilli()
	}
	if b.upstream != nil {
		b.upstream.Publish(event)
		return
	}
	b.publishLocal(event)
}

// Replay sends up to count recent events to ch when the upstream keeps history
func (b *Bus) Replay(ch chan Event, count int) {
	if r, ok := b.upstream.(Replayer); ok {
		r.ReplayMessages(ch, count)
	}
}

// Handle calls fn for every event whose type is in types (all events when
// types is empty) until ctx is done. It blocks.
func (b *Bus) Handle(ctx context.Context, fn func(Event), types ...string) {
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if len(want) == 0 || want[event.Type] {
				fn(event)
			}
		}
	}
}

func (b *Bus) publishLocal(event Event) {
	// held across sends so Unsubscribe cannot close a channel mid-send
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.Warn("PubSub: Dropping event for slow subscriber", "type", event.Type)
		}
	}
}
