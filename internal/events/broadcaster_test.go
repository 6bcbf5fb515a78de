package events

import (
	"testing"
	"time"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster(nil)
	first := b.Subscribe(4)
	second := b.Subscribe(4)
	defer first.Close()
	defer second.Close()

	b.Publish(Event{Type: TypeLogEmitted, Payload: LogEmitted{Level: "INFO", Message: "hi"}})

	for i, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.Events():
			if ev.Type != TypeLogEmitted {
				t.Fatalf("subscriber %d: unexpected event %v", i, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event delivered", i)
		}
	}
}

func TestBroadcasterDropsForSlowSubscriberOnly(t *testing.T) {
	b := NewBroadcaster(nil)
	slow := b.Subscribe(1)
	fast := b.Subscribe(8)
	defer slow.Close()
	defer fast.Close()

	for i := 0; i < 3; i++ {
		b.Publish(Event{Type: TypeDeltaUpdate})
	}
	if got := len(fast.Events()); got != 3 {
		t.Fatalf("expected fast subscriber to hold 3 events, got %d", got)
	}
	if got := len(slow.Events()); got != 1 {
		t.Fatalf("expected slow subscriber to hold 1 event, got %d", got)
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("expected 2 drops, got %d", got)
	}
}

func TestSubscribeQueuesInitialEvents(t *testing.T) {
	b := NewBroadcaster(nil)
	sub := b.Subscribe(2, Event{Type: TypeStatusSnapshot})
	defer sub.Close()
	b.Publish(Event{Type: TypeDeltaUpdate})

	ev := <-sub.Events()
	if ev.Type != TypeStatusSnapshot {
		t.Fatalf("expected status snapshot first, got %v", ev.Type)
	}
	ev = <-sub.Events()
	if ev.Type != TypeDeltaUpdate {
		t.Fatalf("expected delta update second, got %v", ev.Type)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	b := NewBroadcaster(nil)
	sub := b.Subscribe(1)
	sub.Close()
	sub.Close()
	if b.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", b.Subscribers())
	}
	b.Publish(Event{Type: TypeDeltaUpdate})
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("expected closed channel")
	}
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster(nil)
	sub := b.Subscribe(1)
	b.Close()
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("expected subscription closed by broadcaster")
	}
	sub.Close()
	b.Publish(Event{Type: TypeDeltaUpdate})
	late := b.Subscribe(1)
	if _, ok := <-late.Events(); ok {
		t.Fatalf("expected late subscription to be closed")
	}
}
