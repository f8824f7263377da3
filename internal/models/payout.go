package models

import "time"

const (
	PayoutPending   = "pending"
	PayoutCompleted = "completed"
	PayoutFailed    = "failed"
)

type InterviewerPayout struct {
	ID               int64      `json:"id"`
	InterviewerID    int64      `json:"interviewer_id"`
	AmountCents      int64      `json:"amount_cents"`
	Currency         string     `json:"currency"`
	SessionIDs       []int64    `json:"session_ids"`
	Status           string     `json:"status"`
	IdempotencyKey   string     `json:"-"`
	StripeTransferID *string    `json:"stripe_transfer_id,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
