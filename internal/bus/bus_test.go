package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("state.", 10)
	defer unsub()

	b.Emit("state.chats", "payload")

	select {
	case evt := <-ch:
		if evt.Kind != "state.chats" {
			t.Errorf("got kind %q, want state.chats", evt.Kind)
		}
		if evt.Timestamp.IsZero() {
			t.Error("event not timestamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("nav.", 10)
	defer unsub()

	b.Emit(TopicSessionStatus, nil)
	b.Emit(TopicNavigation, nil)

	select {
	case evt := <-ch:
		if evt.Kind != TopicNavigation {
			t.Errorf("got kind %q, want %s", evt.Kind, TopicNavigation)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("state.", 10)
	unsub()
	unsub()

	b.Emit("state.toasts", nil)

	if _, ok := <-ch; ok {
		t.Error("received event after unsubscribe")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Emit("test.one", nil)
	b.Emit("test.two", nil)

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	b.Emit("state.chats", nil)
}
