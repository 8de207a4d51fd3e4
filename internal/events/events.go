// Package events provides the typed, topic-keyed event bus that connects the
// engine's subsystems.
//
// Payloads are plain structs implementing Event. The bus dispatches a payload
// to every handler subscribed to its topic, highest priority first, with
// handlers of equal priority running in subscription order. Handlers run on
// the publishing goroutine.
package events

import (
	"sort"
	"sync"
	"time"
)

// Topic identifies a class of events.
type Topic int

const (
	// EngineUpdate fires once per engine frame.
	EngineUpdate Topic = iota + 1
	// NetworkStartup fires when the network system comes up.
	NetworkStartup
	// NetworkShutdown fires when the network system goes down.
	NetworkShutdown
	// NetworkUpdate fires once per frame after the engine update handlers.
	NetworkUpdate
	// RCSMessage fires for every decoded remote command server frame.
	RCSMessage
	// RCSStateChanged fires when the remote command server changes role.
	RCSStateChanged
)

// String returns the topic name.
func (t Topic) String() string {
	switch t {
	case EngineUpdate:
		return "engine_update"
	case NetworkStartup:
		return "network_startup"
	case NetworkShutdown:
		return "network_shutdown"
	case NetworkUpdate:
		return "network_update"
	case RCSMessage:
		return "rcs_message"
	case RCSStateChanged:
		return "rcs_state_changed"
	default:
		return "unknown"
	}
}

// Event is implemented by every payload published on the bus.
type Event interface {
	Topic() Topic
}

// EngineUpdated is published by the engine at the start of every frame.
type EngineUpdated struct {
	Frame uint64
	Delta time.Duration
}

// Topic implements Event.
func (EngineUpdated) Topic() Topic { return EngineUpdate }

// Handler receives published events.
type Handler func(Event)

// Subscription identifies a registered handler. Pass it to Unsubscribe to
// remove the handler.
type Subscription struct {
	topic Topic
	id    uint64
}

type subscriber struct {
	id       uint64
	priority int
	fn       Handler
}

// Bus dispatches events to subscribed handlers.
// Safe for concurrent use; handlers may subscribe, unsubscribe and publish
// from inside a dispatch.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscriber
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscriber)}
}

// Subscribe registers fn for topic. Handlers with higher priority run first.
func (b *Bus) Subscribe(topic Topic, priority int, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	old := b.subs[topic]
	list := make([]subscriber, 0, len(old)+1)
	list = append(list, old...)
	list = append(list, subscriber{id: b.nextID, priority: priority, fn: fn})
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority > list[j].priority
	})
	b.subs[topic] = list

	return Subscription{topic: topic, id: b.nextID}
}

// Unsubscribe removes the handler registered under s.
// Returns false if it was already removed.
func (b *Bus) Unsubscribe(s Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[s.topic]
	for i, sub := range list {
		if sub.id == s.id {
			next := make([]subscriber, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			b.subs[s.topic] = next
			return true
		}
	}
	return false
}

// Publish dispatches e to the handlers subscribed to its topic and returns
// how many ran.
func (b *Bus) Publish(e Event) int {
	b.mu.RLock()
	list := b.subs[e.Topic()]
	b.mu.RUnlock()

	for _, sub := range list {
		sub.fn(e)
	}
	return len(list)
}

// Count returns the number of handlers subscribed to topic.
func (b *Bus) Count(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
