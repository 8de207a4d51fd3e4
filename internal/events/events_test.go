package events

import (
	"testing"
)

type ping struct{ n int }

func (ping) Topic() Topic { return RCSMessage }

func TestPublishPriorityOrder(t *testing.T) {
	bus := NewBus()
	var order []string

	bus.Subscribe(EngineUpdate, 0, func(Event) { order = append(order, "default") })
	bus.Subscribe(EngineUpdate, -10, func(Event) { order = append(order, "network") })
	bus.Subscribe(EngineUpdate, 5, func(Event) { order = append(order, "early") })
	bus.Subscribe(EngineUpdate, 0, func(Event) { order = append(order, "default2") })

	n := bus.Publish(EngineUpdated{Frame: 1})
	if n != 4 {
		t.Errorf("Publish() = %d, want 4", n)
	}

	want := []string{"early", "default", "default2", "network"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestPublishOnlyMatchingTopic(t *testing.T) {
	bus := NewBus()
	var got []int

	bus.Subscribe(RCSMessage, 0, func(e Event) { got = append(got, e.(ping).n) })
	bus.Subscribe(EngineUpdate, 0, func(Event) { t.Error("engine handler should not run") })

	bus.Publish(ping{n: 7})

	if len(got) != 1 || got[0] != 7 {
		t.Errorf("got = %v, want [7]", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0

	sub := bus.Subscribe(RCSMessage, 0, func(Event) { calls++ })
	if !bus.Unsubscribe(sub) {
		t.Fatal("Unsubscribe() should succeed")
	}
	if bus.Unsubscribe(sub) {
		t.Error("second Unsubscribe() should report false")
	}

	bus.Publish(ping{})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if bus.Count(RCSMessage) != 0 {
		t.Errorf("Count() = %d, want 0", bus.Count(RCSMessage))
	}
}

func TestHandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	bus := NewBus()
	calls := 0

	var sub Subscription
	sub = bus.Subscribe(RCSMessage, 0, func(Event) {
		calls++
		bus.Unsubscribe(sub)
	})
	bus.Subscribe(RCSMessage, 0, func(Event) { calls++ })

	bus.Publish(ping{})
	bus.Publish(ping{})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestNestedPublish(t *testing.T) {
	bus := NewBus()
	var seen []Topic

	bus.Subscribe(EngineUpdate, 0, func(e Event) {
		seen = append(seen, e.Topic())
		bus.Publish(ping{})
	})
	bus.Subscribe(RCSMessage, 0, func(e Event) {
		seen = append(seen, e.Topic())
	})

	bus.Publish(EngineUpdated{})

	if len(seen) != 2 || seen[0] != EngineUpdate || seen[1] != RCSMessage {
		t.Errorf("seen = %v, want [engine_update rcs_message]", seen)
	}
}

func TestTopicString(t *testing.T) {
	if NetworkUpdate.String() != "network_update" {
		t.Errorf("NetworkUpdate.String() = %q", NetworkUpdate.String())
	}
	if Topic(99).String() != "unknown" {
		t.Errorf("Topic(99).String() = %q", Topic(99).String())
	}
}
