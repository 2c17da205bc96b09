package pipeline

import (
	"fmt"
	"sync"
)

// EventType labels a pipeline lifecycle event.
type EventType string

const (
	EventStarted EventType = "STARTED"
	EventDone    EventType = "DONE"
	EventFailed  EventType = "FAILED"
)

// Event is a single pipeline lifecycle broadcast, consumed by the SSE
// stream and by log followers.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
	Stage string    `json:"stage"`
	Items int       `json:"items,omitempty"`
	Error string    `json:"error,omitempty"`
}

// String renders the wire line pushed over the event stream.
func (e Event) String() string {
	switch e.Type {
	case EventDone:
		return fmt.Sprintf("[DONE] %s %s %d", e.RunID, e.Stage, e.Items)
	case EventFailed:
		return fmt.Sprintf("[FAILED] %s %s %s", e.RunID, e.Stage, e.Error)
	}
	return fmt.Sprintf("[STARTED] %s %s", e.RunID, e.Stage)
}

// Bus fans pipeline events out to any number of subscribers. Slow
// subscribers drop events rather than blocking the pipeline.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered channel receiving all future events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
