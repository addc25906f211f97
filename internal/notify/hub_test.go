package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestHubDeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	events, cancel := hub.Subscribe("t1")
	defer cancel()

	ev := Event{Type: EventConfirmed, TicketID: "t1", Redirect: "/dashboard"}
	if err := hub.Publish(ctx, "t1", ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-events:
		if got != ev {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()

	// Fire-and-forget: nobody waiting is not an error.
	if err := hub.Publish(context.Background(), "t1", Event{Type: EventConfirmed}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestHubDoesNotCrossTickets(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	other, cancel := hub.Subscribe("t2")
	defer cancel()

	hub.Publish(ctx, "t1", Event{Type: EventConfirmed, TicketID: "t1"})

	select {
	case ev := <-other:
		t.Errorf("subscriber of t2 received event for %q", ev.TicketID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubEntryRemovedOnLastUnsubscribe(t *testing.T) {
	hub := NewHub()

	_, cancel1 := hub.Subscribe("t1")
	_, cancel2 := hub.Subscribe("t1")

	if n := hub.Waiters("t1"); n != 2 {
		t.Fatalf("expected 2 waiters, got %d", n)
	}

	cancel1()
	if n := hub.Waiters("t1"); n != 1 {
		t.Errorf("expected 1 waiter after first cancel, got %d", n)
	}

	cancel2()
	if n := hub.Waiters("t1"); n != 0 {
		t.Errorf("expected registry entry gone, got %d waiters", n)
	}
}

func TestHubCancelIsIdempotentAndClosesChannel(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe("t1")
	cancel()
	cancel()

	if _, ok := <-events; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	_, cancel := hub.Subscribe("t1")
	defer cancel()

	// Second publish hits a full buffer; it must drop, not block.
	done := make(chan struct{})
	go func() {
		hub.Publish(ctx, "t1", Event{Type: EventConfirmed})
		hub.Publish(ctx, "t1", Event{Type: EventConfirmed})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubConcurrentSubscribePublish(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, cancel := hub.Subscribe("t1")
			defer cancel()
			select {
			case <-events:
			case <-time.After(2 * time.Second):
				t.Error("subscriber starved")
			}
		}()
	}

	// Give subscribers a moment to attach, then publish until all are fed.
	deadline := time.After(2 * time.Second)
	fed := make(chan struct{})
	go func() {
		wg.Wait()
		close(fed)
	}()
	for {
		hub.Publish(ctx, "t1", Event{Type: EventConfirmed, TicketID: "t1"})
		select {
		case <-fed:
			return
		case <-deadline:
			t.Fatal("not all subscribers received an event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
