package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

func TestEmitDeliversSynchronously(t *testing.T) {
	b := New()

	var got []canvasflow.Event
	b.On("tick", func(evt canvasflow.Event) {
		got = append(got, evt)
	})

	b.Emit("tick", 42, "Button1")

	// Delivery completes before Emit returns, no goroutines involved.
	assert.Len(t, got, 1)
	assert.Equal(t, "tick", got[0].Name)
	assert.Equal(t, 42, got[0].Payload)
	assert.Equal(t, "Button1", got[0].Source)
}

func TestEmitRespectsRegistrationOrder(t *testing.T) {
	b := New()

	var order []string
	b.On("evt", func(canvasflow.Event) { order = append(order, "first") })
	b.On("evt", func(canvasflow.Event) { order = append(order, "second") })
	b.On("evt", func(canvasflow.Event) { order = append(order, "third") })

	b.Emit("evt", nil, "")

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestOnAnyReceivesEveryEvent(t *testing.T) {
	b := New()

	var names []string
	b.OnAny(func(evt canvasflow.Event) { names = append(names, evt.Name) })

	b.Emit("a", nil, "")
	b.Emit("b", nil, "")

	assert.Equal(t, []string{"a", "b"}, names)
}

func TestNamedListenersRunBeforeAnyListeners(t *testing.T) {
	b := New()

	var order []string
	b.OnAny(func(canvasflow.Event) { order = append(order, "any") })
	b.On("evt", func(canvasflow.Event) { order = append(order, "named") })

	b.Emit("evt", nil, "")

	assert.Equal(t, []string{"named", "any"}, order)
}

func TestCancelRemovesListener(t *testing.T) {
	b := New()

	calls := 0
	cancel := b.On("evt", func(canvasflow.Event) { calls++ })

	b.Emit("evt", nil, "")
	cancel()
	cancel() // second cancel is a no-op
	b.Emit("evt", nil, "")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.ListenerCount("evt"))
}

func TestEmitWithNoListenersIsHarmless(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Emit("nobody-listens", "payload", "src")
	})
}

func TestListenerRegisteredDuringEmitMissesCurrentEvent(t *testing.T) {
	b := New()

	lateCalls := 0
	b.On("evt", func(canvasflow.Event) {
		b.On("evt", func(canvasflow.Event) { lateCalls++ })
	})

	b.Emit("evt", nil, "")
	assert.Equal(t, 0, lateCalls)

	b.Emit("evt", nil, "")
	assert.Equal(t, 1, lateCalls)
}
