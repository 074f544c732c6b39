package bus

import "errors"

// Handler is invoked for each message delivered to a subscription.
// Handlers run on a per-subscriber delivery goroutine and must not block
// for extended periods.
type Handler func(topic string, payload []byte)

// Bus is the hardware bus: an at-least-once publish/subscribe channel with
// per-topic ordered delivery. The controller and the device simulators only
// ever speak through this interface, so the transport (in-process channel,
// MQTT broker) is swappable without touching either.
type Bus interface {
	// Publish sends a payload to a topic. Publishing is non-blocking with
	// respect to subscribers; a slow consumer never stalls the publisher.
	Publish(topic string, payload []byte) error

	// Subscribe registers a handler for a topic pattern. Patterns use MQTT
	// wildcard syntax: "+" matches one level, "#" matches the remainder.
	// Returns an unsubscribe function.
	Subscribe(topic string, handler Handler) (func(), error)

	// Close shuts the bus down and releases delivery resources.
	Close() error
}

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus: closed")

// TopicMatches reports whether a concrete topic matches a subscription
// pattern under MQTT wildcard rules ("+" single level, "#" multi level).
func TopicMatches(pattern, topic string) bool {
	// Fast path: exact match, no wildcards to evaluate.
	if pattern == topic {
		return true
	}

	pi, ti := 0, 0
	for {
		pSeg, pNext, pOK := nextSegment(pattern, pi)
		tSeg, tNext, tOK := nextSegment(topic, ti)

		switch {
		case !pOK:
			return !tOK
		case pSeg == "#":
			// "#" must be the final segment; it matches everything below.
			return pNext > len(pattern)
		case !tOK:
			return false
		case pSeg != "+" && pSeg != tSeg:
			return false
		}

		pi, ti = pNext, tNext
	}
}

// nextSegment returns the topic segment starting at offset i, the offset of
// the following segment, and whether a segment existed.
func nextSegment(s string, i int) (string, int, bool) {
	if i > len(s) {
		return "", i, false
	}
	for j := i; j < len(s); j++ {
		if s[j] == '/' {
			return s[i:j], j + 1, true
		}
	}
	return s[i:], len(s) + 1, true
}
