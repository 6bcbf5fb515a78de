package events

import (
	"sync"
	"sync/atomic"

	"delta-hedge-bot/internal/metrics"
)

// Broadcaster fans events out to the subscribers connected at publish time.
// Delivery is at most once: a subscriber whose buffer is full misses the
// event, the others still receive it.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	dropped atomic.Uint64
	metrics *metrics.Metrics
}

type Subscription struct {
	ch   chan Event
	b    *Broadcaster
	once sync.Once
}

func NewBroadcaster(m *metrics.Metrics) *Broadcaster {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Broadcaster{
		subs:    make(map[*Subscription]struct{}),
		metrics: m,
	}
}

func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
			b.metrics.EventsDropped.Inc()
		}
	}
}

// Subscribe registers a subscriber. The initial events are queued ahead of
// anything published afterwards.
func (b *Broadcaster) Subscribe(buffer int, initial ...Event) *Subscription {
	if buffer < len(initial)+1 {
		buffer = len(initial) + 1
	}
	sub := &Subscription{ch: make(chan Event, buffer), b: b}
	for _, ev := range initial {
		sub.ch <- ev
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscription. Later publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		if _, ok := s.b.subs[s]; ok {
			delete(s.b.subs, s)
			close(s.ch)
		}
	})
}
