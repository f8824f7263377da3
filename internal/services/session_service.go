package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/database"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/payments"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

type SessionService struct {
	store     Store
	gateway   payments.Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSessionService(
	store Store,
	gateway payments.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SessionService {
	if m == nil {
		m = metrics.New()
	}
	return &SessionService{
		store:     store,
		gateway:   gateway,
		publisher: orNop(publisher),
		metrics:   m,
		logger:    logger.With().Str("component", "session_service").Logger(),
		now:       time.Now,
	}
}

type BookSessionInput struct {
	InterviewerID   int64
	SessionType     string
	ScheduledAt     time.Time
	DurationMinutes int
}

func validSessionType(sessionType string) bool {
	switch sessionType {
	case models.SessionTypeCoding, models.SessionTypeSystemDesign, models.SessionTypeBehavioral, models.SessionTypeMock:
		return true
	default:
		return false
	}
}

func validateDuration(durationMinutes int) error {
	if durationMinutes < MinSessionMinutes || durationMinutes > MaxSessionMinutes {
		return ErrValidation.WithMessage(fmt.Sprintf(
			"duration_minutes must be between %d and %d",
			MinSessionMinutes,
			MaxSessionMinutes,
		))
	}
	return nil
}

// Book creates a pending_payment session. The conflict check and the insert run in one
// serializable transaction holding the interviewer's schedule lock.
func (s *SessionService) Book(
	ctx context.Context,
	candidateID int64,
	input BookSessionInput,
) (session *models.ExpertSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.Book",
		attribute.Int64("candidate_id", candidateID),
		attribute.Int64("interviewer_id", input.InterviewerID),
	)
	defer func() { finishSpan(span, err) }()

	now := s.now().UTC()
	switch {
	case input.InterviewerID <= 0:
		return nil, ErrValidation.WithMessage("interviewer_id is required")
	case input.InterviewerID == candidateID:
		return nil, ErrValidation.WithMessage("You cannot book a session with yourself")
	case !validSessionType(input.SessionType):
		return nil, ErrValidation.WithMessage("session_type must be one of coding, system_design, behavioral, mock")
	case !input.ScheduledAt.After(now):
		return nil, ErrValidation.WithMessage("scheduled_at must be in the future")
	}
	if err := validateDuration(input.DurationMinutes); err != nil {
		return nil, err
	}

	interviewer, err := s.store.Queries().Interviewers.GetByUserID(ctx, input.InterviewerID)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Interviewer not found"))
	}
	if !interviewer.Bookable() {
		return nil, ErrInterviewerUnavailable
	}

	price := ComputePrice(interviewer.HourlyRateCents, input.DurationMinutes)
	scheduledAt := input.ScheduledAt.UTC()
	heldSince := now.Add(-PaymentHold)

	err = s.store.InTx(ctx, database.Serializable, func(q Queries) error {
		if err := q.Sessions.LockInterviewerSchedule(ctx, input.InterviewerID); err != nil {
			return err
		}

		hasConflict, err := q.Sessions.HasConflict(ctx, repository.ConflictQuery{
			InterviewerID:   input.InterviewerID,
			ScheduledAt:     scheduledAt,
			DurationMinutes: input.DurationMinutes,
			Buffer:          BookingBuffer,
			HeldSince:       &heldSince,
		})
		if err != nil {
			return err
		}
		if hasConflict {
			return ErrSlotConflict
		}

		session, err = q.Sessions.Create(ctx, repository.CreateSessionInput{
			CandidateID:      candidateID,
			InterviewerID:    input.InterviewerID,
			SessionType:      input.SessionType,
			ScheduledAt:      scheduledAt,
			DurationMinutes:  input.DurationMinutes,
			PriceCents:       price.TotalCents,
			PlatformFeeCents: price.PlatformFeeCents,
			PayoutCents:      price.PayoutCents,
		})
		return err
	})
	if err != nil {
		if database.IsSerializationFailure(err) {
			err = ErrSlotConflict.Wrap(err)
		}
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.Bookings.WithLabelValues("conflict").Inc()
		} else {
			s.metrics.Bookings.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	s.metrics.Bookings.WithLabelValues("booked").Inc()
	s.logger.Info().
		Int64("session_id", session.ID).
		Int64("interviewer_id", session.InterviewerID).
		Time("scheduled_at", session.ScheduledAt).
		Msg("session booked")
	publish(ctx, s.publisher, s.logger, sessionEvent(events.SessionBooked, session))
	return session, nil
}

// CheckAvailability evaluates the booking conflict predicate without writing.
func (s *SessionService) CheckAvailability(
	ctx context.Context,
	interviewerID int64,
	scheduledAt time.Time,
	durationMinutes int,
) (bool, error) {
	if err := validateDuration(durationMinutes); err != nil {
		return false, err
	}

	q := s.store.Queries()
	interviewer, err := q.Interviewers.GetByUserID(ctx, interviewerID)
	if err != nil {
		return false, notFound(err, ErrNotFound.WithMessage("Interviewer not found"))
	}
	if !interviewer.Bookable() {
		return false, nil
	}

	heldSince := s.now().Add(-PaymentHold)
	hasConflict, err := q.Sessions.HasConflict(ctx, repository.ConflictQuery{
		InterviewerID:   interviewerID,
		ScheduledAt:     scheduledAt.UTC(),
		DurationMinutes: durationMinutes,
		Buffer:          BookingBuffer,
		HeldSince:       &heldSince,
	})
	if err != nil {
		return false, err
	}
	return !hasConflict, nil
}

func (s *SessionService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.ExpertSession, error) {
	if role != models.RoleCandidate && role != models.RoleInterviewer {
		return nil, ErrForbidden
	}
	switch filter.Timeframe {
	case "", "upcoming", "past":
	default:
		return nil, ErrValidation.WithMessage("timeframe must be upcoming or past")
	}

	return s.store.Queries().Sessions.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    normalizeStatusFilter(filter.Status),
		Timeframe: filter.Timeframe,
	})
}

func (s *SessionService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.ExpertSession, error) {
	session, err := s.store.Queries().Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Session not found"))
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *SessionService) StartSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.ExpertSession, error) {
	session, err := s.GetSession(ctx, actorID, role, sessionID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleInterviewer || session.InterviewerID != actorID {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionScheduled {
		return nil, ErrInvalidSessionState
	}
	opensAt := session.ScheduledAt.Add(-StartWindow)
	if s.now().Before(opensAt) {
		return nil, ErrInvalidSessionState.WithMessage(
			"Session can be started from " + opensAt.UTC().Format(time.RFC3339),
		)
	}

	return s.advance(ctx, session, models.SessionScheduled, models.SessionInProgress, events.SessionStarted)
}

func (s *SessionService) CompleteSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.ExpertSession, error) {
	session, err := s.GetSession(ctx, actorID, role, sessionID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleInterviewer || session.InterviewerID != actorID {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionInProgress {
		return nil, ErrInvalidSessionState
	}

	return s.advance(ctx, session, models.SessionInProgress, models.SessionCompleted, events.SessionCompleted)
}

func (s *SessionService) advance(
	ctx context.Context,
	session *models.ExpertSession,
	from string,
	to string,
	eventType string,
) (*models.ExpertSession, error) {
	updated, err := s.store.Queries().Sessions.UpdateStatusIfCurrent(ctx, session.ID, from, to)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrInvalidSessionState
		}
		return nil, err
	}
	publish(ctx, s.publisher, s.logger, sessionEvent(eventType, updated))
	return updated, nil
}

// CancelSession cancels a pending or scheduled session. A scheduled session is made
// whole for the candidate the same way an interviewer no-show is.
func (s *SessionService) CancelSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (session *models.ExpertSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.CancelSession", attribute.Int64("session_id", sessionID))
	defer func() { finishSpan(span, err) }()

	current, err := s.GetSession(ctx, actorID, role, sessionID)
	if err != nil {
		return nil, err
	}

	switch current.Status {
	case models.SessionPendingPayment:
		session, err = s.store.Queries().Sessions.UpdateStatusIfCurrent(
			ctx,
			sessionID,
			models.SessionPendingPayment,
			models.SessionCancelled,
		)
		if err != nil {
			if isNoRows(err) {
				return nil, ErrInvalidSessionState
			}
			return nil, err
		}
	case models.SessionScheduled:
		if role == models.RoleCandidate && current.ScheduledAt.Sub(s.now()) < CandidateCancelNotice {
			return nil, ErrCancellationWindowClosed
		}
		session, err = s.makeWhole(ctx, current, repository.CloseUpdate{
			SessionID:  sessionID,
			FromStatus: models.SessionScheduled,
			ToStatus:   models.SessionCancelled,
		}, "cancellation")
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidSessionState
	}

	s.logger.Info().Int64("session_id", session.ID).Int64("actor_id", actorID).Msg("session cancelled")
	publish(ctx, s.publisher, s.logger, sessionEvent(events.SessionCancelled, session))
	return session, nil
}

// ReportNoShow records that one party missed a scheduled session. An interviewer no-show
// returns the candidate's package unit or refunds the payment.
func (s *SessionService) ReportNoShow(
	ctx context.Context,
	reporterID int64,
	reporterRole string,
	sessionID int64,
	reportedParty string,
) (session *models.ExpertSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.ReportNoShow",
		attribute.Int64("session_id", sessionID),
		attribute.String("reported_party", reportedParty),
	)
	defer func() { finishSpan(span, err) }()

	if reportedParty != models.PartyCandidate && reportedParty != models.PartyInterviewer {
		return nil, ErrValidation.WithMessage("reported_party must be candidate or interviewer")
	}

	current, err := s.store.Queries().Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Session not found"))
	}
	if !canReportNoShow(reporterRole, reporterID, current, reportedParty) {
		return nil, ErrForbidden
	}
	if current.Status != models.SessionScheduled {
		return nil, ErrInvalidSessionState
	}
	graceEnds := current.ScheduledAt.Add(NoShowGracePeriod)
	if s.now().Before(graceEnds) {
		return nil, ErrGracePeriodNotElapsed.WithMessage(
			"No-show can only be reported after the grace period; wait until " + graceEnds.UTC().Format(time.RFC3339),
		)
	}

	party := reportedParty
	closeUpdate := repository.CloseUpdate{
		SessionID:   sessionID,
		FromStatus:  models.SessionScheduled,
		ToStatus:    models.SessionNoShow,
		NoShowParty: &party,
		ReportedBy:  &reporterID,
	}

	if reportedParty == models.PartyCandidate {
		session, err = s.store.Queries().Sessions.Close(ctx, closeUpdate)
		if err != nil {
			if isNoRows(err) {
				return nil, ErrInvalidSessionState
			}
			return nil, err
		}
	} else {
		session, err = s.makeWhole(ctx, current, closeUpdate, "interviewer_no_show")
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Int64("session_id", session.ID).
		Str("reported_party", reportedParty).
		Int64("reporter_id", reporterID).
		Str("payment_status", session.PaymentStatus).
		Msg("no-show recorded")
	publish(ctx, s.publisher, s.logger, sessionEvent(events.SessionNoShow, session))
	return session, nil
}

// makeWhole closes the session and gives the candidate their money or package unit back.
// Package units are restored in the same transaction as the close. Direct payments are
// refunded through the processor first; the local close only runs once the refund exists.
func (s *SessionService) makeWhole(
	ctx context.Context,
	current *models.ExpertSession,
	closeUpdate repository.CloseUpdate,
	reason string,
) (*models.ExpertSession, error) {
	closeUpdate.Refunded = true

	if current.PackageFunded() {
		var session *models.ExpertSession
		err := s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
			locked, err := q.Sessions.GetByIDForUpdate(ctx, current.ID)
			if err != nil {
				return err
			}
			if locked.Status != closeUpdate.FromStatus || !locked.PackageFunded() {
				return ErrInvalidSessionState
			}
			if _, err := q.Packages.Restore(ctx, *locked.CoachingPackageID, s.now().UTC()); err != nil {
				return err
			}
			session, err = q.Sessions.Close(ctx, closeUpdate)
			return err
		})
		if err != nil {
			if isNoRows(err) {
				return nil, ErrInvalidSessionState
			}
			return nil, err
		}
		return session, nil
	}

	if current.PaymentStatus != models.PaymentPaid || current.StripePaymentIntentID == nil {
		if current.PaymentStatus == models.PaymentPaid {
			s.logger.Warn().
				Str("event", "refund_skipped").
				Int64("session_id", current.ID).
				Int64("amount_cents", current.PriceCents).
				Str("reason", reason).
				Msg("paid session has no payment intent; refund needs manual handling")
		}
		closeUpdate.Refunded = false
		session, err := s.store.Queries().Sessions.Close(ctx, closeUpdate)
		if err != nil {
			if isNoRows(err) {
				return nil, ErrInvalidSessionState
			}
			return nil, err
		}
		return session, nil
	}

	refund, err := s.gateway.Refund(ctx, payments.RefundRequest{
		PaymentIntentID: *current.StripePaymentIntentID,
		AmountCents:     current.PriceCents,
		IdempotencyKey:  refundIdempotencyKey(current.ID),
		Metadata: map[string]string{
			"session_id": strconv.FormatInt(current.ID, 10),
			"reason":     reason,
		},
	})
	if err != nil {
		s.metrics.Refunds.WithLabelValues(reason, "failed").Inc()
		s.logger.Error().Err(err).Int64("session_id", current.ID).Str("reason", reason).Msg("refund failed")
		return nil, ErrPaymentProcessor.Wrap(err)
	}
	s.metrics.Refunds.WithLabelValues(reason, "succeeded").Inc()

	closeUpdate.RefundID = &refund.ID
	session, err := s.store.Queries().Sessions.Close(ctx, closeUpdate)
	if err == nil {
		return session, nil
	}

	if isNoRows(err) {
		// A concurrent report reusing the same idempotency key may already have recorded
		// this refund.
		latest, readErr := s.store.Queries().Sessions.GetByID(ctx, current.ID)
		if readErr == nil && latest.PaymentStatus == models.PaymentRefunded &&
			latest.StripeRefundID != nil && *latest.StripeRefundID == refund.ID {
			return latest, nil
		}
	}

	s.metrics.CriticalInconsistencies.WithLabelValues(reason + "_refund").Inc()
	s.logger.Error().
		Err(err).
		Str("event", "critical_inconsistency").
		Int64("session_id", current.ID).
		Str("refund_id", refund.ID).
		Int64("refund_amount_cents", current.PriceCents).
		Str("reason", reason).
		Msg("refund issued but session could not be updated")
	return nil, ErrCriticalInconsistency.Wrap(err)
}

func refundIdempotencyKey(sessionID int64) string {
	return "session-" + strconv.FormatInt(sessionID, 10) + "-refund"
}

func canAccessSession(role string, actorID int64, session *models.ExpertSession) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleCandidate:
		return session.CandidateID == actorID
	case models.RoleInterviewer:
		return session.InterviewerID == actorID
	default:
		return false
	}
}

func canReportNoShow(role string, reporterID int64, session *models.ExpertSession, reportedParty string) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleCandidate:
		return session.CandidateID == reporterID && reportedParty == models.PartyInterviewer
	case models.RoleInterviewer:
		return session.InterviewerID == reporterID && reportedParty == models.PartyCandidate
	default:
		return false
	}
}

func sessionEvent(eventType string, session *models.ExpertSession) events.Event {
	return events.New(
		eventType,
		"session:"+strconv.FormatInt(session.ID, 10),
		[]int64{session.CandidateID, session.InterviewerID},
		session,
	)
}

func normalizeStatusFilter(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
