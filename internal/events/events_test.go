package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.events = append(p.events, event)
	return p.err
}

func TestMultiPublishesToEveryPublisher(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	healthy := &recordingPublisher{}

	err := Multi{failing, nil, healthy}.Publish(context.Background(), New(SessionBooked, "session:1", []int64{1, 2}, nil))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if len(failing.events) != 1 || len(healthy.events) != 1 {
		t.Fatalf("expected both publishers to receive the event")
	}
}

func TestKafkaMessageCarriesKeyAndHeaders(t *testing.T) {
	event := New(PayoutCompleted, "payout:9", []int64{20}, map[string]int64{"amount_cents": 8500})

	message, err := kafkaMessage(event)
	if err != nil {
		t.Fatalf("kafkaMessage: %v", err)
	}
	if string(message.Key) != "payout:9" {
		t.Fatalf("unexpected key %q", message.Key)
	}
	if len(message.Headers) != 2 || string(message.Headers[0].Value) != PayoutCompleted {
		t.Fatalf("unexpected headers: %+v", message.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(message.Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != event.ID || decoded.Type != PayoutCompleted {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestNopPublisher(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
