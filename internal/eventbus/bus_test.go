package eventbus

import (
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Publish(Event{Type: "AgentToolStart", Data: "echo"})

	select {
	case e := <-sub.Events:
		if e.Type != "AgentToolStart" {
			t.Fatalf("got type %q, want AgentToolStart", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	b := New()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	b.Publish(Event{Type: "HeartbeatTick"})

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case <-sub.Events:
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := New()
	sub := b.SubscribeBuffered(1)
	defer sub.Unsubscribe()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"}) // buffer full, should be dropped not block

	if b.Dropped() == 0 {
		t.Fatal("expected at least one dropped event")
	}
	<-sub.Events // drain the first event, proving Publish never blocked
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	sub.Unsubscribe()

	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", b.SubscriberCount())
	}
	if _, ok := <-sub.Events; ok {
		t.Fatal("expected channel to be closed")
	}
}
