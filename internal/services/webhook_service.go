package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/payments"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

const (
	CheckoutKindExpertSession   = "expert_session"
	CheckoutKindCoachingPackage = "coaching_package"
	CheckoutKindCredits         = "credits"
	CheckoutKindSubscription    = "subscription"
)

const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeRefunded  = "refunded"
)

var errDuplicateEvent = errors.New("webhook event already processed")

type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Outcome   string `json:"outcome"`
}

type WebhookService struct {
	store     Store
	verifier  payments.Verifier
	gateway   payments.Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewWebhookService(
	store Store,
	verifier payments.Verifier,
	gateway payments.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *WebhookService {
	if m == nil {
		m = metrics.New()
	}
	return &WebhookService{
		store:     store,
		verifier:  verifier,
		gateway:   gateway,
		publisher: orNop(publisher),
		metrics:   m,
		logger:    logger.With().Str("component", "webhook_service").Logger(),
		now:       time.Now,
	}
}

// slotLost is returned from inside a transaction when a paid checkout arrives for a
// session whose slot was taken meanwhile. The transaction rolls back and the payment is
// refunded outside it.
type slotLost struct {
	session *models.ExpertSession
}

func (e *slotLost) Error() string {
	return "slot lost for session " + strconv.FormatInt(e.session.ID, 10)
}

// HandleWebhook verifies the signature over the raw body before reading anything from
// it, then applies the event at most once.
func (s *WebhookService) HandleWebhook(
	ctx context.Context,
	payload []byte,
	signatureHeader string,
) (result *WebhookResult, err error) {
	event, err := s.verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, payments.ErrMalformedEvent) {
			s.metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
			return nil, ErrValidation.WithMessage("Malformed webhook payload").Wrap(err)
		}
		s.metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		s.logger.Warn().Err(err).Msg("rejected webhook with invalid signature")
		return nil, ErrInvalidSignature.Wrap(err)
	}

	ctx, span := startSpan(ctx, "WebhookService.HandleWebhook",
		attribute.String("event_id", event.ID),
		attribute.String("event_type", event.Type),
	)
	defer func() { finishSpan(span, err) }()

	result = &WebhookResult{EventID: event.ID, EventType: event.Type}
	var followUp []events.Event

	err = s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
		followUp = nil
		fresh, err := q.Webhooks.MarkProcessed(ctx, event.ID, event.Type)
		if err != nil {
			return err
		}
		if !fresh {
			return errDuplicateEvent
		}

		outcome, emitted, err := s.apply(ctx, q, event)
		if err != nil {
			return err
		}
		result.Outcome = outcome
		followUp = emitted
		return nil
	})

	var lost *slotLost
	switch {
	case errors.Is(err, errDuplicateEvent):
		result.Outcome = WebhookOutcomeDuplicate
		err = nil
	case errors.As(err, &lost):
		var session *models.ExpertSession
		session, err = s.refundLostSlot(ctx, event, lost.session)
		switch {
		case errors.Is(err, errDuplicateEvent):
			result.Outcome = WebhookOutcomeDuplicate
			followUp = nil
			err = nil
		case err == nil:
			result.Outcome = WebhookOutcomeRefunded
			followUp = []events.Event{sessionEvent(events.SessionCancelled, session)}
		}
	}
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		s.logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", event.Type).Msg("webhook processing failed")
		return nil, err
	}

	s.metrics.WebhookEvents.WithLabelValues(event.Type, result.Outcome).Inc()
	s.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("outcome", result.Outcome).
		Msg("webhook processed")
	for _, emitted := range followUp {
		publish(ctx, s.publisher, s.logger, emitted)
	}
	return result, nil
}

func (s *WebhookService) apply(ctx context.Context, q Queries, event *payments.Event) (string, []events.Event, error) {
	switch event.Type {
	case payments.EventCheckoutSessionCompleted:
		if event.Checkout == nil {
			return WebhookOutcomeIgnored, nil, nil
		}
		return s.applyCheckout(ctx, q, event.Checkout)
	case payments.EventSubscriptionUpdated, payments.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return WebhookOutcomeIgnored, nil, nil
		}
		return s.applySubscriptionChange(ctx, q, event.Type, event.Subscription)
	case payments.EventChargeRefunded:
		if event.Charge == nil || event.Charge.PaymentIntentID == "" {
			return WebhookOutcomeIgnored, nil, nil
		}
		var refundID *string
		if event.Charge.RefundID != "" {
			refundID = &event.Charge.RefundID
		}
		changed, err := q.Sessions.MarkRefundedByPaymentIntent(ctx, event.Charge.PaymentIntentID, refundID)
		if err != nil {
			return "", nil, err
		}
		return outcomeFor(changed), nil, nil
	default:
		return WebhookOutcomeIgnored, nil, nil
	}
}

func (s *WebhookService) applyCheckout(
	ctx context.Context,
	q Queries,
	checkout *payments.CheckoutSession,
) (string, []events.Event, error) {
	metadata := checkout.Metadata
	switch metadata["kind"] {
	case CheckoutKindExpertSession:
		sessionID, ok := metadataID(metadata, "session_id")
		if !ok {
			return WebhookOutcomeIgnored, nil, nil
		}
		return s.scheduleSession(ctx, q, sessionID, checkout)
	case CheckoutKindCoachingPackage:
		packageID, ok := metadataID(metadata, "package_id")
		if !ok {
			return WebhookOutcomeIgnored, nil, nil
		}
		_, err := q.Packages.Activate(ctx, packageID, checkout.ID, s.now().UTC())
		if err != nil {
			if isNoRows(err) {
				return WebhookOutcomeIgnored, nil, nil
			}
			return "", nil, err
		}
		return WebhookOutcomeApplied, nil, nil
	case CheckoutKindCredits:
		companyID, okCompany := metadataID(metadata, "company_id")
		credits, okCredits := metadataID(metadata, "credits")
		if !okCompany || !okCredits {
			return WebhookOutcomeIgnored, nil, nil
		}
		return s.creditCompany(ctx, q, companyID, credits, checkout.ID)
	case CheckoutKindSubscription:
		userID, ok := metadataID(metadata, "user_id")
		tier := strings.ToLower(strings.TrimSpace(metadata["tier"]))
		if !ok || !validTier(tier) {
			return WebhookOutcomeIgnored, nil, nil
		}
		update := repository.SubscriptionUpdate{Tier: tier, Status: "active"}
		if checkout.CustomerID != "" {
			update.CustomerID = &checkout.CustomerID
		}
		if checkout.SubscriptionID != "" {
			update.SubscriptionID = &checkout.SubscriptionID
		}
		if _, err := q.Users.UpdateSubscription(ctx, userID, update); err != nil {
			if isNoRows(err) {
				return WebhookOutcomeIgnored, nil, nil
			}
			return "", nil, err
		}
		return WebhookOutcomeApplied, nil, nil
	default:
		return WebhookOutcomeIgnored, nil, nil
	}
}

// scheduleSession confirms a paid session, re-checking the slot since pending sessions
// do not hold it.
func (s *WebhookService) scheduleSession(
	ctx context.Context,
	q Queries,
	sessionID int64,
	checkout *payments.CheckoutSession,
) (string, []events.Event, error) {
	current, err := q.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return WebhookOutcomeIgnored, nil, nil
		}
		return "", nil, err
	}
	if err := q.Sessions.LockInterviewerSchedule(ctx, current.InterviewerID); err != nil {
		return "", nil, err
	}

	session, err := q.Sessions.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	if session.Status != models.SessionPendingPayment {
		return WebhookOutcomeIgnored, nil, nil
	}

	hasConflict, err := q.Sessions.HasConflict(ctx, repository.ConflictQuery{
		InterviewerID:    session.InterviewerID,
		ScheduledAt:      session.ScheduledAt,
		DurationMinutes:  session.DurationMinutes,
		Buffer:           BookingBuffer,
		ExcludeSessionID: session.ID,
	})
	if err != nil {
		return "", nil, err
	}
	if hasConflict {
		if checkout.PaymentIntentID != "" {
			paymentIntent := checkout.PaymentIntentID
			session.StripePaymentIntentID = &paymentIntent
		}
		return "", nil, &slotLost{session: session}
	}

	update := repository.ScheduleUpdate{SessionID: session.ID}
	if checkout.PaymentIntentID != "" {
		update.PaymentIntentID = &checkout.PaymentIntentID
	}
	scheduled, err := q.Sessions.MarkScheduled(ctx, update)
	if err != nil {
		if isNoRows(err) {
			return WebhookOutcomeIgnored, nil, nil
		}
		return "", nil, err
	}
	return WebhookOutcomeApplied, []events.Event{sessionEvent(events.SessionScheduled, scheduled)}, nil
}

// refundLostSlot refunds a payment for a session that cannot be scheduled anymore and
// cancels it. The event is only marked processed once both have happened, so a failed
// attempt is retried on redelivery with the same refund idempotency key.
func (s *WebhookService) refundLostSlot(
	ctx context.Context,
	event *payments.Event,
	session *models.ExpertSession,
) (*models.ExpertSession, error) {
	if session.StripePaymentIntentID == nil {
		return s.cancelLostSlot(ctx, event, session, nil)
	}

	refund, err := s.gateway.Refund(ctx, payments.RefundRequest{
		PaymentIntentID: *session.StripePaymentIntentID,
		AmountCents:     session.PriceCents,
		IdempotencyKey:  "session-" + strconv.FormatInt(session.ID, 10) + "-slot-lost",
		Metadata: map[string]string{
			"session_id": strconv.FormatInt(session.ID, 10),
			"reason":     "slot_lost",
		},
	})
	if err != nil {
		s.metrics.Refunds.WithLabelValues("slot_lost", "failed").Inc()
		return nil, ErrPaymentProcessor.Wrap(err)
	}
	s.metrics.Refunds.WithLabelValues("slot_lost", "succeeded").Inc()

	cancelled, err := s.cancelLostSlot(ctx, event, session, refund)
	if errors.Is(err, errDuplicateEvent) {
		return nil, err
	}
	if err != nil {
		s.metrics.CriticalInconsistencies.WithLabelValues("slot_lost_refund").Inc()
		s.logger.Error().
			Err(err).
			Str("event", "critical_inconsistency").
			Int64("session_id", session.ID).
			Str("refund_id", refund.ID).
			Int64("refund_amount_cents", session.PriceCents).
			Str("webhook_event_id", event.ID).
			Msg("refund issued for lost slot but session could not be cancelled")
		return nil, ErrCriticalInconsistency.Wrap(err)
	}
	return cancelled, nil
}

func (s *WebhookService) cancelLostSlot(
	ctx context.Context,
	event *payments.Event,
	session *models.ExpertSession,
	refund *payments.Refund,
) (*models.ExpertSession, error) {
	var cancelled *models.ExpertSession
	err := s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
		fresh, err := q.Webhooks.MarkProcessed(ctx, event.ID, event.Type)
		if err != nil {
			return err
		}
		if !fresh {
			return errDuplicateEvent
		}
		update := repository.CloseUpdate{
			SessionID:     session.ID,
			FromStatus:    models.SessionPendingPayment,
			ToStatus:      models.SessionCancelled,
			PaymentIntent: session.StripePaymentIntentID,
		}
		if refund != nil {
			update.Refunded = true
			update.RefundID = &refund.ID
		}
		cancelled, err = q.Sessions.Close(ctx, update)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *WebhookService) creditCompany(
	ctx context.Context,
	q Queries,
	companyID int64,
	credits int64,
	reference string,
) (string, []events.Event, error) {
	if _, err := q.Companies.GetByID(ctx, companyID); err != nil {
		if isNoRows(err) {
			return WebhookOutcomeIgnored, nil, nil
		}
		return "", nil, err
	}

	inserted, err := q.Companies.InsertLedgerEntry(ctx, repository.LedgerEntryInput{
		CompanyID: companyID,
		Delta:     credits,
		Reason:    models.LedgerReasonPurchase,
		Reference: reference,
	})
	if err != nil {
		return "", nil, err
	}
	if !inserted {
		return WebhookOutcomeIgnored, nil, nil
	}

	company, err := q.Companies.CreditCredits(ctx, companyID, credits)
	if err != nil {
		return "", nil, err
	}
	if err := q.Companies.SetLedgerBalance(ctx, reference, company.CreditBalance); err != nil {
		return "", nil, err
	}
	return WebhookOutcomeApplied, nil, nil
}

func (s *WebhookService) applySubscriptionChange(
	ctx context.Context,
	q Queries,
	eventType string,
	subscription *payments.Subscription,
) (string, []events.Event, error) {
	if subscription.ID == "" {
		return WebhookOutcomeIgnored, nil, nil
	}

	var tier *string
	status := subscription.Status
	if eventType == payments.EventSubscriptionDeleted {
		free := models.TierFree
		tier = &free
		if status == "" {
			status = "canceled"
		}
	} else if requested := strings.ToLower(strings.TrimSpace(subscription.Metadata["tier"])); validTier(requested) {
		tier = &requested
	}

	changed, err := q.Users.UpdateSubscriptionBySubscriptionID(ctx, subscription.ID, tier, status)
	if err != nil {
		return "", nil, err
	}
	return outcomeFor(changed), nil, nil
}

func outcomeFor(changed bool) string {
	if changed {
		return WebhookOutcomeApplied
	}
	return WebhookOutcomeIgnored
}

func metadataID(metadata map[string]string, key string) (int64, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(metadata[key]), 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

func validTier(tier string) bool {
	switch tier {
	case models.TierFree, models.TierPro, models.TierPremium:
		return true
	default:
		return false
	}
}
