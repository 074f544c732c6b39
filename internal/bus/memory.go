package bus

import (
	"sync"
)

// subscriberQueueDepth is the per-subscriber delivery buffer. Device status
// arrives at the tick rate (10 Hz per device), so this absorbs several
// seconds of backlog before messages are dropped.
const subscriberQueueDepth = 256

// MemoryBus is an in-process Bus implementation.
//
// Each subscriber owns a buffered channel drained by a dedicated goroutine,
// which preserves per-topic publish order for that subscriber while keeping
// Publish non-blocking. When a subscriber's buffer is full the oldest
// pending message is dropped, which is what a QoS-1 broker does to a slow
// consumer under backpressure.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[uint64]*memorySub
	nextID uint64
	closed bool
}

type memorySub struct {
	pattern string
	ch      chan message
	done    chan struct{}
}

type message struct {
	topic   string
	payload []byte
}

// NewMemoryBus creates an in-process hardware bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[uint64]*memorySub),
	}
}

// Publish delivers the payload to every subscription whose pattern matches
// the topic. The payload is copied once so handlers can retain it.
func (b *MemoryBus) Publish(topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	msg := message{topic: topic, payload: buf}

	for _, sub := range b.subs {
		if !TopicMatches(sub.pattern, topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Buffer full: drop the oldest message to make room so the
			// subscriber sees fresh state rather than stale backlog.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
	b.mu.RUnlock()
	return nil
}

// Subscribe registers a handler for a topic pattern and starts its delivery
// goroutine. The returned function cancels the subscription.
func (b *MemoryBus) Subscribe(pattern string, handler Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}

	b.nextID++
	id := b.nextID
	sub := &memorySub{
		pattern: pattern,
		ch:      make(chan message, subscriberQueueDepth),
		done:    make(chan struct{}),
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-sub.ch:
				handler(msg.topic, msg.payload)
			case <-sub.done:
				return
			}
		}
	}()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.done)
		}
		b.mu.Unlock()
	}

	return unsubscribe, nil
}

// Close stops all delivery goroutines. Subsequent operations return ErrClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.done)
		delete(b.subs, id)
	}
	return nil
}
