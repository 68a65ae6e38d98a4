package core

import (
	"sync"
	"time"
)

// EventKind identifies a store mutation.
type EventKind string

const (
	EventSeeded        EventKind = "seeded"
	EventRowAdded      EventKind = "row_added"
	EventRowUpdated    EventKind = "row_updated"
	EventRowDeleted    EventKind = "row_deleted"
	EventRowSaved      EventKind = "row_saved"
	EventErrorsChanged EventKind = "errors_changed"
	EventStatusChanged EventKind = "status_changed"
	EventValidated     EventKind = "validated"
	EventCleared       EventKind = "cleared"
)

// Event is published to subscribers after a store mutation.
type Event struct {
	Table  string          `json:"table"`
	Kind   EventKind       `json:"kind"`
	Key    string          `json:"key,omitempty"`
	Fields []string        `json:"fields,omitempty"`
	Status OperationStatus `json:"status,omitempty"`
	Failed bool            `json:"failed,omitempty"`
	At     time.Time       `json:"at"`
}

// DefaultSubscriberBuffer is used when Subscribe is called with buffer <= 0.
const DefaultSubscriberBuffer = 64

// broadcaster fans events out to subscriber channels.
// Sends never block: a subscriber that falls behind misses events.
type broadcaster struct {
	mu        sync.Mutex
	listeners map[int]chan Event
	nextID    int
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.listeners == nil {
		b.listeners = make(map[int]chan Event)
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}
