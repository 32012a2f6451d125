package notify

import (
	"testing"
	"time"
)

func recvOne(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeReceivesMatchingOps(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(KindStory, OpInsert)
	defer sub.Cancel()

	b.Publish(Event{Kind: KindStory, Op: OpDelete, StoryID: 1})
	b.Publish(Event{Kind: KindStory, Op: OpInsert, StoryID: 2})

	ev := recvOne(t, sub)
	if ev.Op != OpInsert || ev.StoryID != 2 {
		t.Errorf("got %+v, want insert for story 2", ev)
	}

	select {
	case ev := <-sub.C:
		t.Errorf("unexpected extra event %+v", ev)
	default:
	}
}

func TestSubscribeAllOpsByDefault(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(KindStory)
	defer sub.Cancel()

	b.Publish(Event{Kind: KindStory, Op: OpInsert, StoryID: 1})
	b.Publish(Event{Kind: KindStory, Op: OpDelete, StoryID: 1})

	if ev := recvOne(t, sub); ev.Op != OpInsert {
		t.Errorf("first event op = %s, want insert", ev.Op)
	}
	if ev := recvOne(t, sub); ev.Op != OpDelete {
		t.Errorf("second event op = %s, want delete", ev.Op)
	}
}

func TestCancelClosesChannelAndStopsDelivery(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(KindStory)
	sub.Cancel()
	sub.Cancel() // idempotent

	b.Publish(Event{Kind: KindStory, Op: OpInsert, StoryID: 3})

	if _, ok := <-sub.C; ok {
		t.Fatalf("channel still open after Cancel")
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(KindStory)
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*2; i++ {
			b.Publish(Event{Kind: KindStory, Op: OpInsert, StoryID: uint(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a full subscriber buffer")
	}
}

func TestCancelledSubscriptionDoesNotReceiveFromOtherSubscribers(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe(KindStory)
	c := b.Subscribe(KindStory)
	a.Cancel()

	b.Publish(Event{Kind: KindStory, Op: OpDelete, StoryID: 9})

	if ev := recvOne(t, c); ev.StoryID != 9 {
		t.Errorf("remaining subscriber got %+v, want story 9", ev)
	}
}
