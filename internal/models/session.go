package models

import "time"

const (
	SessionPendingPayment = "pending_payment"
	SessionScheduled      = "scheduled"
	SessionInProgress     = "in_progress"
	SessionCompleted      = "completed"
	SessionCancelled      = "cancelled"
	SessionNoShow         = "no_show"
)

const (
	PaymentUnpaid      = "unpaid"
	PaymentPaid        = "paid"
	PaymentRefunded    = "refunded"
	PaymentTransferred = "transferred"
)

const (
	SessionTypeCoding       = "coding"
	SessionTypeSystemDesign = "system_design"
	SessionTypeBehavioral   = "behavioral"
	SessionTypeMock         = "mock"
)

const (
	PartyCandidate   = "candidate"
	PartyInterviewer = "interviewer"
)

type ExpertSession struct {
	ID                    int64     `json:"id"`
	CandidateID           int64     `json:"candidate_id"`
	InterviewerID         int64     `json:"interviewer_id"`
	SessionType           string    `json:"session_type"`
	ScheduledAt           time.Time `json:"scheduled_at"`
	DurationMinutes       int       `json:"duration_minutes"`
	Status                string    `json:"status"`
	PaymentStatus         string    `json:"payment_status"`
	PriceCents            int64     `json:"price_cents"`
	PlatformFeeCents      int64     `json:"platform_fee_cents"`
	PayoutCents           int64     `json:"payout_cents"`
	CoachingPackageID     *int64    `json:"coaching_package_id,omitempty"`
	StripePaymentIntentID *string   `json:"-"`
	StripeRefundID        *string   `json:"-"`
	PayoutID              *int64    `json:"payout_id,omitempty"`
	NoShowParty           *string   `json:"no_show_party,omitempty"`
	NoShowReportedBy      *int64    `json:"no_show_reported_by,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (s *ExpertSession) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s *ExpertSession) PackageFunded() bool {
	return s.CoachingPackageID != nil
}

func (s *ExpertSession) IsTerminal() bool {
	switch s.Status {
	case SessionCompleted, SessionCancelled, SessionNoShow:
		return true
	default:
		return false
	}
}
