package services

import "time"

const (
	PlatformFeePercent = 15

	BookingBuffer         = 2 * time.Hour
	PaymentHold           = 15 * time.Minute
	NoShowGracePeriod     = 15 * time.Minute
	StartWindow           = 10 * time.Minute
	CandidateCancelNotice = 24 * time.Hour

	MinSessionMinutes = 15
	MaxSessionMinutes = 240
)

type Price struct {
	TotalCents       int64 `json:"total_cents"`
	PlatformFeeCents int64 `json:"platform_fee_cents"`
	PayoutCents      int64 `json:"payout_cents"`
}

// ComputePrice prices a session from an hourly rate. Both the total and the fee are
// rounded half up to whole cents; the payout is what remains.
func ComputePrice(rateCentsPerHour int64, durationMinutes int) Price {
	total := roundDiv(rateCentsPerHour*int64(durationMinutes), 60)
	fee := roundDiv(total*PlatformFeePercent, 100)
	return Price{
		TotalCents:       total,
		PlatformFeeCents: fee,
		PayoutCents:      total - fee,
	}
}

func roundDiv(numerator, denominator int64) int64 {
	if numerator < 0 {
		return -roundDiv(-numerator, denominator)
	}
	return (numerator + denominator/2) / denominator
}

// SlotConflicts reports whether an existing active session blocks a new one. The SQL in
// SessionRepository.HasConflict evaluates the same predicate.
func SlotConflicts(
	existingStart time.Time,
	existingMinutes int,
	start time.Time,
	durationMinutes int,
) bool {
	existingEnd := existingStart.Add(time.Duration(existingMinutes) * time.Minute)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return existingStart.Before(end) && existingEnd.After(start.Add(-BookingBuffer))
}
