package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

const (
	// DefaultSubject carries every matchlog event
	DefaultSubject = "matchlog.events"
	// DefaultStream is the JetStream stream bound to DefaultSubject
	DefaultStream = "MATCHLOG_EVENTS"
)

// jetStream is the JetStream plumbing shared by the remote and embedded
// upstreams: one subject, fanned out to local channels.
type jetStream struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	sub     *nats.Subscription

	mu          sync.RWMutex
	subscribers []chan Event
}

func newJetStream(nc *nats.Conn, subject, stream string, storage nats.StorageType, maxAge time.Duration) (*jetStream, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if stream == "" {
		stream = DefaultStream
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{subject},
			Storage:  storage,
			MaxAge:   maxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", stream, err)
		}
		logger.Info("JetStream stream created", "stream", stream, "subject", subject)
	}

	j := &jetStream{
		nc:          nc,
		js:          js,
		subject:     subject,
		subscribers: make([]chan Event, 0),
	}

	j.sub, err = js.Subscribe(subject, j.deliver, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return j, nil
}

func (j *jetStream) deliver(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		msg.Nak()
		return
	}

	j.mu.RLock()
	for _, sub := range j.subscribers {
		select {
		case sub <- event:
		default:
			logger.Warn("JetStream: Skipping slow subscriber", "event_type", event.Type)
		}
	}
	j.mu.RUnlock()
	msg.Ack()
}

// Publish writes an event to the stream
func (j *jetStream) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}
	if _, err := j.js.Publish(j.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", j.subject, "event_type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "event_type", event.Type, "subject", j.subject)
}

// Subscribe returns a channel receiving every event on the subject
func (j *jetStream) Subscribe() chan Event {
	ch := make(chan Event, 100)

	j.mu.Lock()
	j.subscribers = append(j.subscribers, ch)
	j.mu.Unlock()

	return ch
}

// Unsubscribe removes and closes a channel
func (j *jetStream) Unsubscribe(ch chan Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i, sub := range j.subscribers {
		if sub == ch {
			j.subscribers = append(j.subscribers[:i], j.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// SubscriberCount returns the number of local channels
func (j *jetStream) SubscriberCount() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.subscribers)
}

// close stops NATS delivery before closing the local channels
func (j *jetStream) close() {
	if j.sub != nil {
		_ = j.sub.Unsubscribe()
	}
	if j.nc != nil {
		j.nc.Close()
	}

	j.mu.Lock()
	for _, sub := range j.subscribers {
		close(sub)
	}
	j.subscribers = nil
	j.mu.Unlock()
}

// NATSPubSub is an upstream backed by an external NATS server
type NATSPubSub struct {
	*jetStream
}

// NewNATSPubSub connects to natsURL and binds subject to a file-backed stream
func NewNATSPubSub(natsURL, subject string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL, nats.Name("bo7-match-logger"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	j, err := newJetStream(nc, subject, DefaultStream, nats.FileStorage, 0)
	if err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("Connected to NATS", "url", natsURL, "subject", j.subject)
	return &NATSPubSub{jetStream: j}, nil
}

// Close drops subscriptions and the connection
func (p *NATSPubSub) Close() {
	p.jetStream.close()
}
