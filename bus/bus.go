// Package bus provides non-blocking in-process publish/subscribe for the
// vision node. Frames are dropped rather than queued: a subscriber that
// cannot keep up loses messages instead of adding latency for everyone else.
package bus

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Subscription is a single subscriber's handle on a topic. Receive from C;
// call Bus.Unsubscribe when done.
type Subscription struct {
	ID    string
	Topic string
	C     <-chan interface{}

	ch chan interface{}
}

// Bus routes messages by topic name to any number of subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	closed bool
	logger *zap.SugaredLogger

	published atomic.Int64
	dropped   atomic.Int64
}

// New creates an empty bus.
func New(logger *zap.SugaredLogger) *Bus {
	return &Bus{
		subs:   make(map[string][]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a new subscriber on topic with the given channel
// buffer. When the buffer is full, new messages are dropped until the
// consumer drains it; a buffer of 1 keeps at most one pending message.
func (b *Bus) Subscribe(topic string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription{
		ID:    uuid.NewString(),
		Topic: topic,
		ch:    make(chan interface{}, buffer),
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub
}

// Unsubscribe removes sub from the bus and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	list := b.subs[sub.Topic]
	for i, s := range list {
		if s.ID == sub.ID {
			b.subs[sub.Topic] = append(list[:i], list[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish delivers msg to every subscriber on topic without blocking.
// Subscribers with a full buffer miss this message.
func (b *Bus) Publish(topic string, msg interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.published.Inc()
	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Inc()
			if b.logger != nil {
				b.logger.Debugw("dropped message for slow subscriber",
					"topic", topic, "subscription", sub.ID)
			}
		}
	}
}

// Stats reports lifetime publish and drop counts.
func (b *Bus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}

// Close shuts the bus down. Publish becomes a no-op and all subscriber
// channels are closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, list := range b.subs {
		for _, sub := range list {
			close(sub.ch)
		}
		delete(b.subs, topic)
	}
}
