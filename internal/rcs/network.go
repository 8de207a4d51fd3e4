package rcs

import (
	"github.com/vovakirdan/bread/internal/events"
)

// UpdatePriority orders the network tick after the default engine update
// handlers.
const UpdatePriority = -10

// NetworkSystem turns engine frames into network ticks.
type NetworkSystem struct {
	bus *events.Bus
	sub events.Subscription
	on  bool
}

// StartNetwork publishes NetworkStarted and begins forwarding every engine
// update as a NetworkUpdated event.
func StartNetwork(bus *events.Bus) *NetworkSystem {
	n := &NetworkSystem{bus: bus, on: true}
	n.sub = bus.Subscribe(events.EngineUpdate, UpdatePriority, n.onEngineUpdate)
	bus.Publish(NetworkStarted{})
	return n
}

func (n *NetworkSystem) onEngineUpdate(e events.Event) {
	u, ok := e.(events.EngineUpdated)
	if !ok {
		return
	}
	n.bus.Publish(NetworkUpdated{Frame: u.Frame})
}

// Shutdown stops forwarding and publishes NetworkStopped.
// Safe to call more than once.
func (n *NetworkSystem) Shutdown() {
	if !n.on {
		return
	}
	n.on = false
	n.bus.Unsubscribe(n.sub)
	n.bus.Publish(NetworkStopped{})
}
