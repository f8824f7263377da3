package models

import "time"

const (
	PackagePending   = "pending"
	PackageActive    = "active"
	PackageExhausted = "exhausted"
	PackageExpired   = "expired"
)

// CoachingPackage holds RemainingSessions + UsedSessions == TotalSessions, enforced by
// a CHECK constraint on coaching_packages.
type CoachingPackage struct {
	ID                      int64      `json:"id"`
	UserID                  int64      `json:"user_id"`
	Name                    string     `json:"name"`
	TotalSessions           int        `json:"total_sessions"`
	RemainingSessions       int        `json:"remaining_sessions"`
	UsedSessions            int        `json:"used_sessions"`
	PriceCents              int64      `json:"price_cents"`
	Status                  string     `json:"status"`
	ValidityDays            int        `json:"validity_days"`
	ExpiresAt               *time.Time `json:"expires_at"`
	StripeCheckoutSessionID *string    `json:"-"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

func (p *CoachingPackage) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}
