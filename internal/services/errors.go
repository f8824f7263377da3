package services

import (
	"errors"
)

type ErrorKind int

const (
	KindUnauthenticated ErrorKind = iota + 1
	KindForbidden
	KindNotFound
	KindValidation
	KindBusinessRule
	KindConflict
	KindExternal
	KindCritical
)

// Error is returned by every service operation that fails for a reason the caller can
// act on. Two errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(message string) *Error {
	clone := *e
	clone.Message = message
	return &clone
}

// Wrap returns a copy that keeps err as its cause.
func (e *Error) Wrap(err error) *Error {
	clone := *e
	clone.Err = err
	return &clone
}

func AsError(err error) (*Error, bool) {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Code: "UNAUTHENTICATED", Message: "Authentication required"}
	ErrForbidden       = &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: "Forbidden"}
	ErrNotFound        = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "Not found"}
	ErrValidation      = &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: "Invalid request"}

	ErrInvalidSignature = &Error{
		Kind:    KindValidation,
		Code:    "INVALID_SIGNATURE",
		Message: "Invalid webhook signature",
	}

	ErrSlotConflict = &Error{
		Kind:    KindConflict,
		Code:    "SLOT_CONFLICT",
		Message: "The requested time slot is no longer available",
	}
	ErrInterviewerUnavailable = &Error{
		Kind:    KindBusinessRule,
		Code:    "INTERVIEWER_UNAVAILABLE",
		Message: "Interviewer is not accepting bookings",
	}
	ErrPackageInactive = &Error{
		Kind:    KindBusinessRule,
		Code:    "PACKAGE_INACTIVE",
		Message: "Package is not active",
	}
	ErrNoSessionsRemaining = &Error{
		Kind:    KindBusinessRule,
		Code:    "NO_SESSIONS_REMAINING",
		Message: "Package has no sessions remaining",
	}
	ErrInvalidSessionState = &Error{
		Kind:    KindBusinessRule,
		Code:    "INVALID_SESSION_STATE",
		Message: "Session is not in a state that allows this action",
	}
	ErrGracePeriodNotElapsed = &Error{
		Kind:    KindBusinessRule,
		Code:    "GRACE_PERIOD_NOT_ELAPSED",
		Message: "The no-show grace period has not elapsed",
	}
	ErrCancellationWindowClosed = &Error{
		Kind:    KindBusinessRule,
		Code:    "CANCELLATION_WINDOW_CLOSED",
		Message: "Sessions can only be cancelled at least 24 hours before they start",
	}
	ErrInsufficientCredits = &Error{
		Kind:    KindBusinessRule,
		Code:    "INSUFFICIENT_CREDITS",
		Message: "Company does not have enough credits",
	}
	ErrRequestAlreadyAnswered = &Error{
		Kind:    KindBusinessRule,
		Code:    "REQUEST_ALREADY_ANSWERED",
		Message: "Interview request has already been answered",
	}
	ErrNoPayoutAvailable = &Error{
		Kind:    KindBusinessRule,
		Code:    "NO_PAYOUT_AVAILABLE",
		Message: "No sessions are eligible for payout",
	}
	ErrPayoutAccountMissing = &Error{
		Kind:    KindBusinessRule,
		Code:    "PAYOUT_ACCOUNT_MISSING",
		Message: "Connect a payout account before requesting a payout",
	}

	ErrPaymentProcessor = &Error{
		Kind:    KindExternal,
		Code:    "PAYMENT_PROCESSOR_ERROR",
		Message: "The payment processor could not complete the request",
	}
	ErrJobSearchUnavailable = &Error{
		Kind:    KindExternal,
		Code:    "JOB_SEARCH_UNAVAILABLE",
		Message: "Job search is temporarily unavailable",
	}
	ErrCriticalInconsistency = &Error{
		Kind:    KindCritical,
		Code:    "CRITICAL_INCONSISTENCY",
		Message: "Your payment was processed but we could not record it. Please contact support.",
	}
)
