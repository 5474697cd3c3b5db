package pubsub

import (
	"sync"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

// DefaultHistory is how many events a MemoryUpstream keeps for replay
const DefaultHistory = 1000

// MemoryUpstream stands in for JetStream in development: it delivers
// in-process and keeps a bounded history so late subscribers can catch up.
type MemoryUpstream struct {
	mu          sync.RWMutex
	subscribers []chan Event
	history     []Event
	maxHistory  int
}

// NewMemoryUpstream creates an in-memory upstream keeping maxHistory events
func NewMemoryUpstream(maxHistory int) *MemoryUpstream {
	if maxHistory <= 0 {
		maxHistory = DefaultHistory
	}
	logger.Info("Using in-memory event upstream", "history", maxHistory)
	return &MemoryUpstream{maxHistory: maxHistory}
}

func (m *MemoryUpstream) Publish(event Event) {
	m.mu.Lock()
	m.history = append(m.history, event)
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
	defer m.mu.Unlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			logger.Warn("Memory upstream: Skipping slow subscriber", "event_type", event.Type)
		}
	}
}

func (m *MemoryUpstream) Subscribe() chan Event {
	ch := make(chan Event, 100)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

func (m *MemoryUpstream) Unsubscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// ReplayMessages sends the last count events to ch without blocking
func (m *MemoryUpstream) ReplayMessages(ch chan Event, count int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := len(m.history) - count
	if start < 0 {
		start = 0
	}
	for _, event := range m.history[start:] {
		select {
		case ch <- event:
		default:
			return
		}
	}
}

// MessageCount returns the number of events held for replay
func (m *MemoryUpstream) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

// Close closes every subscriber
func (m *MemoryUpstream) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
}
