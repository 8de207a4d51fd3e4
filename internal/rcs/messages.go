package rcs

import (
	"github.com/google/uuid"

	"github.com/vovakirdan/bread/internal/events"
)

// MessageReceived is published for every frame decoded from a peer.
type MessageReceived struct {
	ConnID  uuid.UUID
	Address string
	Type    MessageType
	Text    string
}

// Topic implements events.Event.
func (MessageReceived) Topic() events.Topic { return events.RCSMessage }

// StateChanged is published when the server changes role.
type StateChanged struct {
	From Role
	To   Role
}

// Topic implements events.Event.
func (StateChanged) Topic() events.Topic { return events.RCSStateChanged }

// NetworkStarted is published when the network system starts.
type NetworkStarted struct{}

// Topic implements events.Event.
func (NetworkStarted) Topic() events.Topic { return events.NetworkStartup }

// NetworkStopped is published when the network system shuts down.
type NetworkStopped struct{}

// Topic implements events.Event.
func (NetworkStopped) Topic() events.Topic { return events.NetworkShutdown }

// NetworkUpdated is published once per frame after the engine update.
type NetworkUpdated struct {
	Frame uint64
}

// Topic implements events.Event.
func (NetworkUpdated) Topic() events.Topic { return events.NetworkUpdate }
