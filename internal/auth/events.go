package auth

import "sync"

// EventType is the kind of session change.
type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

// SessionEvent notifies subscribers of a session change.
type SessionEvent struct {
	Type    EventType
	Session *Session
}

// eventBus fans session events out to subscribers. Slow subscribers drop
// events rather than block sign-in.
type eventBus struct {
	mu   sync.Mutex
	subs map[chan SessionEvent]bool
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[chan SessionEvent]bool)}
}

func (b *eventBus) subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 8)
	b.mu.Lock()
	b.subs[ch] = true
	b.mu.Unlock()

	release := func() {
		b.mu.Lock()
		if b.subs[ch] {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, release
}

func (b *eventBus) publish(ev SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
