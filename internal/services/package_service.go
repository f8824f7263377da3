package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

const (
	defaultPackageValidityDays = 90
	maxPackageSessions         = 50
)

type PackageService struct {
	store     Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewPackageService(
	store Store,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *PackageService {
	if m == nil {
		m = metrics.New()
	}
	return &PackageService{
		store:     store,
		publisher: orNop(publisher),
		metrics:   m,
		logger:    logger.With().Str("component", "package_service").Logger(),
		now:       time.Now,
	}
}

type CreatePackageInput struct {
	Name          string
	TotalSessions int
	PriceCents    int64
	ValidityDays  int
}

type PackageConsumption struct {
	Package *models.CoachingPackage `json:"package"`
	Session *models.ExpertSession   `json:"session"`
}

// CreatePackage records a package awaiting checkout; the checkout webhook activates it.
func (s *PackageService) CreatePackage(
	ctx context.Context,
	userID int64,
	input CreatePackageInput,
) (*models.CoachingPackage, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return nil, ErrValidation.WithMessage("name is required")
	case input.TotalSessions <= 0 || input.TotalSessions > maxPackageSessions:
		return nil, ErrValidation.WithMessage("total_sessions must be between 1 and " + strconv.Itoa(maxPackageSessions))
	case input.PriceCents < 0:
		return nil, ErrValidation.WithMessage("price_cents must not be negative")
	case input.ValidityDays < 0:
		return nil, ErrValidation.WithMessage("validity_days must not be negative")
	}

	validityDays := input.ValidityDays
	if validityDays == 0 {
		validityDays = defaultPackageValidityDays
	}

	return s.store.Queries().Packages.Create(ctx, repository.CreatePackageInput{
		UserID:        userID,
		Name:          name,
		TotalSessions: input.TotalSessions,
		PriceCents:    input.PriceCents,
		ValidityDays:  validityDays,
	})
}

func (s *PackageService) ListPackages(ctx context.Context, userID int64) ([]models.CoachingPackage, error) {
	q := s.store.Queries()
	if err := s.expireStale(ctx, q, userID); err != nil {
		return nil, err
	}
	return q.Packages.ListByUser(ctx, userID)
}

// ConsumePackage funds a pending_payment session from one of the user's packages. The
// package decrement and the session transition commit together or not at all.
func (s *PackageService) ConsumePackage(
	ctx context.Context,
	userID int64,
	packageID int64,
	sessionID int64,
) (result *PackageConsumption, err error) {
	ctx, span := startSpan(ctx, "PackageService.ConsumePackage",
		attribute.Int64("package_id", packageID),
		attribute.Int64("session_id", sessionID),
	)
	defer func() {
		finishSpan(span, err)
		s.recordConsumption(err)
	}()

	if packageID <= 0 || sessionID <= 0 {
		return nil, ErrValidation.WithMessage("package_id and session_id are required")
	}

	q := s.store.Queries()
	if err := s.expireStale(ctx, q, userID); err != nil {
		return nil, err
	}

	// The schedule lock is taken before the package row. Session errors are only
	// reported once the package checks have passed.
	var lockInterviewerID int64
	target, err := q.Sessions.GetByID(ctx, sessionID)
	switch {
	case err == nil:
		if target.CandidateID == userID {
			lockInterviewerID = target.InterviewerID
		}
	case !isNoRows(err):
		return nil, err
	}

	now := s.now().UTC()
	err = s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
		if lockInterviewerID > 0 {
			if err := q.Sessions.LockInterviewerSchedule(ctx, lockInterviewerID); err != nil {
				return err
			}
		}

		pkg, err := q.Packages.GetByIDForUpdate(ctx, packageID)
		if err != nil {
			return notFound(err, ErrNotFound.WithMessage("Package not found"))
		}
		if pkg.UserID != userID {
			return ErrNotFound.WithMessage("Package not found")
		}
		if pkg.Status == models.PackageActive && pkg.ExpiredAt(now) {
			pkg.Status = models.PackageExpired
		}
		if pkg.Status != models.PackageActive {
			return ErrPackageInactive.WithMessage("Package is " + pkg.Status)
		}
		if pkg.RemainingSessions <= 0 {
			return ErrNoSessionsRemaining
		}

		session, err := q.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return notFound(err, ErrNotFound.WithMessage("Session not found"))
		}
		if session.CandidateID != userID || session.InterviewerID != lockInterviewerID {
			return ErrNotFound.WithMessage("Session not found")
		}
		if session.Status != models.SessionPendingPayment {
			return ErrInvalidSessionState
		}

		hasConflict, err := q.Sessions.HasConflict(ctx, repository.ConflictQuery{
			InterviewerID:    session.InterviewerID,
			ScheduledAt:      session.ScheduledAt,
			DurationMinutes:  session.DurationMinutes,
			Buffer:           BookingBuffer,
			ExcludeSessionID: session.ID,
		})
		if err != nil {
			return err
		}
		if hasConflict {
			return ErrSlotConflict
		}

		consumed, err := q.Packages.Consume(ctx, pkg.ID)
		if err != nil {
			if isNoRows(err) {
				return ErrNoSessionsRemaining
			}
			return err
		}

		scheduled, err := q.Sessions.MarkScheduled(ctx, repository.ScheduleUpdate{
			SessionID:         session.ID,
			CoachingPackageID: &consumed.ID,
		})
		if err != nil {
			if isNoRows(err) {
				return ErrInvalidSessionState
			}
			return err
		}

		result = &PackageConsumption{Package: consumed, Session: scheduled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("package_id", result.Package.ID).
		Int64("session_id", result.Session.ID).
		Int("remaining_sessions", result.Package.RemainingSessions).
		Str("package_status", result.Package.Status).
		Msg("package session consumed")
	publish(ctx, s.publisher, s.logger, sessionEvent(events.SessionScheduled, result.Session))
	return result, nil
}

func (s *PackageService) expireStale(ctx context.Context, q Queries, userID int64) error {
	expired, err := q.Packages.ExpireStale(ctx, userID, s.now().UTC())
	if err != nil {
		return err
	}
	if expired > 0 {
		s.logger.Info().Int64("user_id", userID).Int64("expired", expired).Msg("expired stale packages")
	}
	return nil
}

func (s *PackageService) recordConsumption(err error) {
	outcome := "consumed"
	if err != nil {
		outcome = "error"
		if serviceErr, ok := AsError(err); ok {
			outcome = strings.ToLower(serviceErr.Code)
		}
	}
	s.metrics.PackageConsumptions.WithLabelValues(outcome).Inc()
}
