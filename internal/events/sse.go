package events

import "github.com/kelindar/event"

// SubscribeToChannel adapts a callback subscription for one event type
// into channel delivery, so SSE handlers can select over the client
// context and incoming events in one loop. Sends never block: when the
// channel is full the event is dropped, which for a lagging stream
// consumer only thins the feed. Returns the unsubscribe function.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
