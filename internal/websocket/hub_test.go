package sessionws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		if !ok {
			t.Fatalf("client channel closed")
		}
		var message Message
		if err := json.Unmarshal(payload, &message); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		return message
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func TestHubDeliversOnlyToRecipients(t *testing.T) {
	hub := startHub(t)
	candidate := NewClient(hub, nil, "7")
	interviewer := NewClient(hub, nil, "9")
	bystander := NewClient(hub, nil, "11")
	hub.Register(candidate)
	hub.Register(interviewer)
	hub.Register(bystander)

	event := events.New(events.SessionScheduled, "session:3", []int64{7, 9, 7}, map[string]int64{"session_id": 3})
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, client := range []*Client{candidate, interviewer} {
		message := receive(t, client)
		if message.Type != events.SessionScheduled || message.EventID != event.ID {
			t.Fatalf("unexpected message %+v", message)
		}
	}

	select {
	case <-bystander.send:
		t.Fatalf("bystander must not receive the event")
	case <-candidate.send:
		t.Fatalf("duplicate recipient ids must be delivered once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublishWithoutRecipientsIsNoop(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	if err := hub.Publish(context.Background(), events.New(events.PayoutCompleted, "payout:1", nil, nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(hub.broadcast) != 0 {
		t.Fatalf("expected nothing queued")
	}
}

func TestHubPublishHonoursContext(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- events.Event{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hub.Publish(ctx, events.New(events.SessionBooked, "session:1", []int64{1}, nil))
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHubReplyAfterSlowClientDroppedDoesNotPanic(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, "7")
	hub.Register(client)

	for i := 0; i < cap(client.send)+8; i++ {
		event := events.New(events.SessionBooked, "session:1", []int64{7}, nil)
		if err := hub.Publish(context.Background(), event); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	deadline := time.After(time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-client.send:
			closed = !ok
		case <-deadline:
			t.Fatalf("expected the slow client to be dropped")
		}
	}

	client.reply(Message{Type: "pong"})
	client.reply(Message{Type: "pong"})
	hub.Unregister(client)
}

func TestHubReplyReachesRegisteredClient(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, "7")
	hub.Register(client)

	client.reply(Message{Type: "pong"})

	if message := receive(t, client); message.Type != "pong" {
		t.Fatalf("expected pong, got %+v", message)
	}
}

func TestHubCallsReturnAfterShutdown(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	registered := NewClient(hub, nil, "7")
	hub.Register(registered)
	cancel()
	<-stopped

	if _, ok := <-registered.send; ok {
		t.Fatalf("expected registered client to be closed on shutdown")
	}

	finished := make(chan struct{})
	go func() {
		registered.reply(Message{Type: "pong"})
		hub.Unregister(registered)
		late := NewClient(hub, nil, "9")
		hub.Register(late)
		if _, ok := <-late.send; ok {
			t.Errorf("expected late client to be closed")
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("hub calls blocked after shutdown")
	}
}
