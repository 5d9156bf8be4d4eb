package events

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan any, timeout time.Duration) any {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(timeout):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestPublishSubscribeStateChanged(t *testing.T) {
	bus := New()

	received := make(chan any, 1)
	unsub := bus.Subscribe(func(e ProcessStateChangedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(ProcessStateChangedEvent{OldState: "stopped", NewState: "starting"})

	e := waitFor(t, received, time.Second).(ProcessStateChangedEvent)
	if e.OldState != "stopped" || e.NewState != "starting" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestSubscriberOnlyReceivesItsType(t *testing.T) {
	bus := New()

	outputs := make(chan any, 4)
	unsub := bus.Subscribe(func(e OutputLineEvent) {
		outputs <- e
	})
	defer unsub()

	bus.Publish(HealthChangedEvent{Healthy: true})
	bus.Publish(OutputLineEvent{Line: "hello"})

	e := waitFor(t, outputs, time.Second).(OutputLineEvent)
	if e.Line != "hello" {
		t.Errorf("unexpected line: %q", e.Line)
	}

	select {
	case extra := <-outputs:
		t.Errorf("received event of wrong type: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()

	received := make(chan any, 4)
	unsub := bus.Subscribe(func(e OutputLineEvent) {
		received <- e
	})

	bus.Publish(OutputLineEvent{Line: "before"})
	waitFor(t, received, time.Second)

	unsub()
	bus.Publish(OutputLineEvent{Line: "after"})

	select {
	case e := <-received:
		t.Errorf("received event after unsubscribe: %+v", e)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()

	ch := make(chan any, 2)
	unsub := SubscribeToChannel[HealthChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(HealthChangedEvent{Healthy: false})

	e := waitFor(t, ch, time.Second).(HealthChangedEvent)
	if e.Healthy {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()

	ch := make(chan any, 1)
	unsub := SubscribeToChannel[OutputLineEvent](bus, ch)
	defer unsub()

	// The channel holds one event; the rest must be dropped, not block
	for i := 0; i < 10; i++ {
		bus.Publish(OutputLineEvent{Line: "burst"})
	}

	waitFor(t, ch, time.Second)
	// Publishing again must still work after the burst
	bus.Publish(OutputLineEvent{Line: "tail"})
}

func TestEventTypesAreDistinct(t *testing.T) {
	types := map[uint32]string{}
	for name, typ := range map[string]uint32{
		"state":  ProcessStateChangedEvent{}.Type(),
		"output": OutputLineEvent{}.Type(),
		"health": HealthChangedEvent{}.Type(),
		"log":    LogEntryEvent{}.Type(),
	} {
		if prev, dup := types[typ]; dup {
			t.Errorf("event types %s and %s share id %d", prev, name, typ)
		}
		types[typ] = name
	}
}
