package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greengoods/gardenqueue/job"
)

func ev(id string, typ job.EventType) job.Event {
	return job.Event{Type: typ, JobID: id, At: time.Now()}
}

func TestBus_DeliveryOrder(t *testing.T) {
	bus := NewBus()

	var got []job.EventType
	bus.Subscribe(func(e job.Event) {
		got = append(got, e.Type)
	})

	bus.Publish(ev("j1", job.EventAdded))
	bus.Publish(ev("j1", job.EventProcessing))
	bus.Publish(ev("j1", job.EventCompleted))

	assert.Equal(t, []job.EventType{job.EventAdded, job.EventProcessing, job.EventCompleted}, got)
}

func TestBus_DoubleSubscribeDeliversTwice(t *testing.T) {
	bus := NewBus()

	count := 0
	fn := func(job.Event) { count++ }

	bus.Subscribe(fn)
	bus.Subscribe(fn)

	bus.Publish(ev("j1", job.EventAdded))
	assert.Equal(t, 2, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	unsub := bus.Subscribe(func(job.Event) { count++ })

	bus.Publish(ev("j1", job.EventAdded))
	unsub()
	bus.Publish(ev("j1", job.EventProcessing))

	assert.Equal(t, 1, count)
	assert.Zero(t, bus.SubscriberCount())

	// Unsubscribing twice is a no-op.
	unsub()
}

func TestBus_UnsubscribeDuringDelivery(t *testing.T) {
	bus := NewBus()

	var first, second int
	var unsubFirst func()
	unsubFirst = bus.Subscribe(func(job.Event) {
		first++
		unsubFirst()
	})
	bus.Subscribe(func(job.Event) { second++ })

	// The self-unsubscribing handler must not drop the second
	// subscriber's delivery on the same event.
	bus.Publish(ev("j1", job.EventAdded))
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)

	bus.Publish(ev("j1", job.EventProcessing))
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
