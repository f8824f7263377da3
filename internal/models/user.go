package models

import "time"

const (
	RoleCandidate   = "candidate"
	RoleInterviewer = "interviewer"
	RoleRecruiter   = "recruiter"
	RoleAdmin       = "admin"
)

const (
	TierFree    = "free"
	TierPro     = "pro"
	TierPremium = "premium"
)

type User struct {
	ID                   int64     `json:"id"`
	Email                string    `json:"email"`
	Role                 string    `json:"role"`
	SubscriptionTier     string    `json:"subscription_tier"`
	SubscriptionStatus   *string   `json:"subscription_status,omitempty"`
	StripeCustomerID     *string   `json:"-"`
	StripeSubscriptionID *string   `json:"-"`
	TalentOptIn          bool      `json:"talent_opt_in"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
