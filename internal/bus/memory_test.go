package bus

import (
	"sync"
	"testing"
	"time"
)

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		{"exact match", "stf/hbw/status", "stf/hbw/status", true},
		{"exact mismatch", "stf/hbw/status", "stf/vgr/status", false},
		{"single-level wildcard", "stf/+/status", "stf/vgr/status", true},
		{"single-level wrong depth", "stf/+/status", "stf/vgr/cmd/move", false},
		{"multi-level wildcard", "stf/#", "stf/hbw/cmd/move", true},
		{"multi-level at root", "#", "stf/global/cmd/estop", true},
		{"plus does not cross levels", "stf/+", "stf/hbw/status", false},
		{"longer topic than pattern", "stf/hbw", "stf/hbw/status", false},
		{"longer pattern than topic", "stf/hbw/status", "stf/hbw", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopicMatches(tt.pattern, tt.topic); got != tt.want {
				t.Errorf("TopicMatches(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close() //nolint:errcheck // Test cleanup

	received := make(chan string, 8)
	unsub, err := b.Subscribe("stf/+/status", func(topic string, payload []byte) {
		received <- topic + ":" + string(payload)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsub()

	if err := b.Publish("stf/hbw/status", []byte("a")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	// Non-matching topic must not be delivered.
	if err := b.Publish("stf/hbw/cmd/move", []byte("b")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "stf/hbw/status:a" {
			t.Errorf("received %q, want %q", got, "stf/hbw/status:a")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	select {
	case got := <-received:
		t.Errorf("unexpected delivery %q for non-matching topic", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_OrderPreservedPerSubscriber(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close() //nolint:errcheck // Test cleanup

	const n = 50
	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})

	_, err := b.Subscribe("seq", func(_ string, payload []byte) {
		mu.Lock()
		got = append(got, payload[0])
		if len(got) == n {
			close(done)
		}
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := 0; i < n; i++ {
		if err := b.Publish("seq", []byte{byte(i)}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all deliveries")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		if got[i] != byte(i) {
			t.Fatalf("delivery order broken at %d: got %d", i, got[i])
		}
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close() //nolint:errcheck // Test cleanup

	received := make(chan struct{}, 1)
	unsub, err := b.Subscribe("topic", func(string, []byte) {
		received <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	unsub()

	if err := b.Publish("topic", []byte("x")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case <-received:
		t.Error("received message after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	b := NewMemoryBus()
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := b.Publish("topic", nil); err != ErrClosed {
		t.Errorf("Publish() after close = %v, want ErrClosed", err)
	}
	if _, err := b.Subscribe("topic", func(string, []byte) {}); err != ErrClosed {
		t.Errorf("Subscribe() after close = %v, want ErrClosed", err)
	}
}
