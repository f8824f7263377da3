package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/payments"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

type PayoutService struct {
	store     Store
	gateway   payments.Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	currency  string
	now       func() time.Time
	newKey    func() string
}

func NewPayoutService(
	store Store,
	gateway payments.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	currency string,
	logger zerolog.Logger,
) *PayoutService {
	if m == nil {
		m = metrics.New()
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}
	return &PayoutService{
		store:     store,
		gateway:   gateway,
		publisher: orNop(publisher),
		metrics:   m,
		logger:    logger.With().Str("component", "payout_service").Logger(),
		currency:  currency,
		now:       time.Now,
		newKey:    uuid.NewString,
	}
}

// RequestPayout claims every eligible session for one payout and transfers its total.
// Claimed sessions cannot be claimed again until the transfer fails and releases them.
func (s *PayoutService) RequestPayout(ctx context.Context, interviewerID int64) (payout *models.InterviewerPayout, err error) {
	ctx, span := startSpan(ctx, "PayoutService.RequestPayout", attribute.Int64("interviewer_id", interviewerID))
	defer func() {
		finishSpan(span, err)
		s.recordPayout(err)
	}()

	q := s.store.Queries()
	interviewer, err := q.Interviewers.GetByUserID(ctx, interviewerID)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Interviewer not found"))
	}
	if interviewer.StripeAccountID == nil || strings.TrimSpace(*interviewer.StripeAccountID) == "" {
		return nil, ErrPayoutAccountMissing
	}

	idempotencyKey := s.newKey()
	var pending *models.InterviewerPayout
	err = s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
		sessions, err := q.Sessions.ListPayoutEligibleForUpdate(ctx, interviewerID, s.now().UTC())
		if err != nil {
			return err
		}

		var total int64
		sessionIDs := make([]int64, 0, len(sessions))
		for _, session := range sessions {
			total += session.PayoutCents
			sessionIDs = append(sessionIDs, session.ID)
		}
		if len(sessionIDs) == 0 || total <= 0 {
			return ErrNoPayoutAvailable
		}

		created, err := q.Payouts.Create(ctx, repository.CreatePayoutInput{
			InterviewerID:  interviewerID,
			AmountCents:    total,
			Currency:       s.currency,
			SessionIDs:     sessionIDs,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			return err
		}
		if err := q.Sessions.AssignPayout(ctx, sessionIDs, created.ID); err != nil {
			return err
		}
		pending = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	payoutID := strconv.FormatInt(pending.ID, 10)
	transfer, err := s.gateway.Transfer(ctx, payments.TransferRequest{
		DestinationAccount: *interviewer.StripeAccountID,
		AmountCents:        pending.AmountCents,
		Currency:           pending.Currency,
		IdempotencyKey:     idempotencyKey,
		TransferGroup:      "payout-" + payoutID,
		Metadata: map[string]string{
			"payout_id":      payoutID,
			"interviewer_id": strconv.FormatInt(interviewerID, 10),
		},
	})
	if err != nil {
		s.releaseFailed(ctx, pending, err)
		return nil, ErrPaymentProcessor.Wrap(err)
	}

	err = s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
		completed, err := q.Payouts.MarkCompleted(ctx, pending.ID, transfer.ID)
		if err != nil {
			return err
		}
		if _, err := q.Sessions.MarkTransferred(ctx, pending.ID); err != nil {
			return err
		}
		payout = completed
		return nil
	})
	if err != nil {
		s.metrics.CriticalInconsistencies.WithLabelValues("payout_transfer").Inc()
		s.logger.Error().
			Err(err).
			Str("event", "critical_inconsistency").
			Int64("payout_id", pending.ID).
			Str("transfer_id", transfer.ID).
			Int64("amount_cents", pending.AmountCents).
			Msg("transfer succeeded but payout could not be recorded")
		return nil, ErrCriticalInconsistency.
			WithMessage("Your payout was sent but we could not record it. Please contact support.").
			Wrap(err)
	}

	s.logger.Info().
		Int64("payout_id", payout.ID).
		Int64("interviewer_id", interviewerID).
		Int64("amount_cents", payout.AmountCents).
		Int("sessions", len(payout.SessionIDs)).
		Msg("payout completed")
	publish(ctx, s.publisher, s.logger, events.New(
		events.PayoutCompleted,
		"payout:"+payoutID,
		[]int64{interviewerID},
		payout,
	))
	return payout, nil
}

func (s *PayoutService) ListPayouts(ctx context.Context, interviewerID int64) ([]models.InterviewerPayout, error) {
	return s.store.Queries().Payouts.ListByInterviewer(ctx, interviewerID)
}

// releaseFailed marks the payout failed and frees its sessions for a later request.
func (s *PayoutService) releaseFailed(ctx context.Context, payout *models.InterviewerPayout, cause error) {
	err := s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
		if _, err := q.Payouts.MarkFailed(ctx, payout.ID, cause.Error()); err != nil {
			return err
		}
		return q.Sessions.ReleasePayout(ctx, payout.ID)
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("payout_id", payout.ID).Msg("release failed payout")
		return
	}
	s.logger.Warn().Err(cause).Int64("payout_id", payout.ID).Msg("payout transfer failed")
}

func (s *PayoutService) recordPayout(err error) {
	outcome := "completed"
	if err != nil {
		outcome = "error"
		if serviceErr, ok := AsError(err); ok {
			outcome = strings.ToLower(serviceErr.Code)
		}
	}
	s.metrics.Payouts.WithLabelValues(outcome).Inc()
}
