package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventString(t *testing.T) {
	assert.Equal(t, "[STARTED] r1 metadata",
		Event{Type: EventStarted, RunID: "r1", Stage: "metadata"}.String())
	assert.Equal(t, "[DONE] r1 classify 42",
		Event{Type: EventDone, RunID: "r1", Stage: "classify", Items: 42}.String())
	assert.Equal(t, "[FAILED] r1 segment boom",
		Event{Type: EventFailed, RunID: "r1", Stage: "segment", Error: "boom"}.String())
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Event{Type: EventStarted, RunID: "r1", Stage: "content"})

	ea := <-a
	eb := <-b
	assert.Equal(t, "r1", ea.RunID)
	assert.Equal(t, "r1", eb.RunID)
}

func TestBusUnsubscribeCloses(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Double unsubscribe is a no-op.
	bus.Unsubscribe(ch)
}

func TestBusSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < 200; i++ {
		bus.Publish(Event{Type: EventDone, RunID: "r", Stage: "content", Items: i})
	}
	assert.Len(t, ch, 64)
}
