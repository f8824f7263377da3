package models

import "time"

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Interviewer is stored in the interviewers table. Skills and Companies are JSONB
// arrays of strings.
type Interviewer struct {
	UserID             int64     `json:"user_id"`
	DisplayName        string    `json:"display_name"`
	Headline           *string   `json:"headline"`
	HourlyRateCents    int64     `json:"hourly_rate_cents"`
	VerificationStatus string    `json:"verification_status"`
	IsActive           bool      `json:"is_active"`
	Skills             []string  `json:"skills"`
	Companies          []string  `json:"companies"`
	StripeAccountID    *string   `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (i *Interviewer) Bookable() bool {
	return i != nil && i.IsActive && i.VerificationStatus == VerificationVerified && i.HourlyRateCents > 0
}
