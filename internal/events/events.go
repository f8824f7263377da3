package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	SessionBooked           = "session.booked"
	SessionScheduled        = "session.scheduled"
	SessionStarted          = "session.started"
	SessionCompleted        = "session.completed"
	SessionCancelled        = "session.cancelled"
	SessionNoShow           = "session.no_show"
	PayoutCompleted         = "payout.completed"
	InterviewRequestCreated = "interview_request.created"
)

// Event is a marketplace change that already committed. Recipients are the user ids
// that should see it live; Key groups events of one aggregate on the same partition.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Key        string    `json:"key"`
	Recipients []int64   `json:"recipients,omitempty"`
	Payload    any       `json:"payload"`
}

func New(eventType string, key string, recipients []int64, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Key:        key,
		Recipients: recipients,
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi hands every event to each publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, publisher := range m {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
