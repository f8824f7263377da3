package models

import "time"

const (
	LedgerReasonPurchase         = "purchase"
	LedgerReasonInterviewRequest = "interview_request"
)

const (
	InterviewRequestPending  = "pending"
	InterviewRequestAccepted = "accepted"
	InterviewRequestDeclined = "declined"
)

type RecruiterCompany struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	OwnerUserID   int64     `json:"owner_user_id"`
	CreditBalance int64     `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreditLedgerEntry struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	Delta        int64     `json:"delta"`
	Reason       string    `json:"reason"`
	Reference    string    `json:"reference"`
	BalanceAfter *int64    `json:"balance_after,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type InterviewRequest struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	RecruiterID  int64     `json:"recruiter_id"`
	CandidateID  int64     `json:"candidate_id"`
	RoleTitle    string    `json:"role_title"`
	Message      *string   `json:"message"`
	CreditsSpent int64     `json:"credits_spent"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
