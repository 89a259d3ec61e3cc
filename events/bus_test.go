package events

import (
	"testing"
)

func TestPublishOrderAndPayload(t *testing.T) {
	b := NewBus()
	var got []int
	b.Subscribe("x", func(p any) { got = append(got, 1) })
	b.Subscribe("x", func(p any) { got = append(got, 2) })
	b.Subscribe("x", func(p any) { got = append(got, 3) })

	b.Publish("x", nil)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("subscribers ran out of order: %v", got)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	b := NewBus()
	ran := false
	b.Subscribe("x", func(p any) { panic("boom") })
	b.Subscribe("x", func(p any) { ran = true })

	// Must not propagate the panic to the publisher.
	b.Publish("x", "payload")

	if !ran {
		t.Fatal("subscriber after panicking one did not run")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	tok := b.Subscribe("x", func(p any) { calls++ })
	b.Publish("x", nil)
	b.Unsubscribe(tok)
	b.Publish("x", nil)

	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}

	// Unknown token is a no-op.
	b.Unsubscribe(Token("nope"))
}

func TestPublishNoSubscribers(t *testing.T) {
	b := NewBus()
	b.Publish("unheard", 42) // must not panic
}

func TestSubscribersAreScopedToEventName(t *testing.T) {
	b := NewBus()
	var xCalls, yCalls int
	b.Subscribe("x", func(p any) { xCalls++ })
	b.Subscribe("y", func(p any) { yCalls++ })

	b.Publish("x", nil)
	b.Publish("x", nil)
	b.Publish("y", nil)

	if xCalls != 2 || yCalls != 1 {
		t.Fatalf("got xCalls=%d yCalls=%d", xCalls, yCalls)
	}
}
