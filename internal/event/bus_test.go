package event

import (
	"fmt"
	"testing"
	"time"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe("alerts")
	defer cancel()

	published := bus.Publish("alerts", map[string]any{"severity": "high"})
	if published.ID == "" {
		t.Fatalf("expected message to receive an id")
	}
	if published.Timestamp.IsZero() {
		t.Fatalf("expected message to receive a timestamp")
	}

	select {
	case got := <-ch:
		if got.ID != published.ID {
			t.Fatalf("expected message %s, got %s", published.ID, got.ID)
		}
		if got.Payload["severity"] != "high" {
			t.Fatalf("unexpected payload: %v", got.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestBus_HistoryEvictsOldestBeyondCapacity(t *testing.T) {
	bus := NewBus(WithHistorySize(3))

	for i := 0; i < 4; i++ {
		bus.Publish("metrics", map[string]any{"seq": i})
	}

	history := bus.Poll("metrics", time.Time{})
	if len(history) != 3 {
		t.Fatalf("expected 3 retained messages, got %d", len(history))
	}
	if history[0].Payload["seq"] != 1 {
		t.Fatalf("expected oldest message evicted, first retained seq=%v", history[0].Payload["seq"])
	}
	if history[2].Payload["seq"] != 3 {
		t.Fatalf("expected newest message last, got seq=%v", history[2].Payload["seq"])
	}
}

func TestBus_PollSinceReturnsStrictlyNewer(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	bus := NewBus(WithClock(func() time.Time {
		current = current.Add(time.Second)
		return current
	}))

	for i := 0; i < 5; i++ {
		bus.Publish("jobs", map[string]any{"seq": i})
	}

	// Cutoff at the third message's timestamp: strictly-newer excludes it.
	cutoff := base.Add(3 * time.Second)
	got := bus.Poll("jobs", cutoff)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages newer than cutoff, got %d", len(got))
	}
	if got[0].Payload["seq"] != 3 || got[1].Payload["seq"] != 4 {
		t.Fatalf("unexpected messages after cutoff: %v, %v", got[0].Payload, got[1].Payload)
	}
}

func TestBus_PollPreservesPublishOrder(t *testing.T) {
	bus := NewBus()

	for i := 0; i < 10; i++ {
		bus.Publish("ordered", map[string]any{"seq": i})
	}

	history := bus.Poll("ordered", time.Time{})
	for i, msg := range history {
		if msg.Payload["seq"] != i {
			t.Fatalf("expected seq %d at position %d, got %v", i, i, msg.Payload["seq"])
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(WithSubscriberBuffer(1))

	slow, cancelSlow := bus.Subscribe("feed")
	defer cancelSlow()
	_ = slow // never drained

	fast, cancelFast := bus.Subscribe("feed")
	defer cancelFast()

	for i := 0; i < 3; i++ {
		bus.Publish("feed", map[string]any{"seq": i})
		select {
		case got := <-fast:
			if got.Payload["seq"] != i {
				t.Fatalf("expected seq %d, got %v", i, got.Payload["seq"])
			}
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber starved at seq %d", i)
		}
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe("alerts")
	cancel()
	cancel() // second call must be safe

	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish("alerts", map[string]any{"severity": "low"})
}

func TestBus_ClearHistory(t *testing.T) {
	bus := NewBus()

	for _, topic := range []string{"a", "b"} {
		for i := 0; i < 3; i++ {
			bus.Publish(topic, map[string]any{"seq": fmt.Sprintf("%s-%d", topic, i)})
		}
	}

	bus.ClearHistory("a")
	if got := bus.Poll("a", time.Time{}); len(got) != 0 {
		t.Fatalf("expected topic a cleared, got %d messages", len(got))
	}
	if got := bus.Poll("b", time.Time{}); len(got) != 3 {
		t.Fatalf("expected topic b untouched, got %d messages", len(got))
	}

	bus.ClearHistory()
	if got := bus.Poll("b", time.Time{}); len(got) != 0 {
		t.Fatalf("expected all topics cleared, got %d messages", len(got))
	}
}
