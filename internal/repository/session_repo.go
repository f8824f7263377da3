package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type CreateSessionInput struct {
	CandidateID      int64
	InterviewerID    int64
	SessionType      string
	ScheduledAt      time.Time
	DurationMinutes  int
	PriceCents       int64
	PlatformFeeCents int64
	PayoutCents      int64
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

type ConflictQuery struct {
	InterviewerID    int64
	ScheduledAt      time.Time
	DurationMinutes  int
	Buffer           time.Duration
	ExcludeSessionID int64
	// HeldSince, when set, also counts pending_payment sessions created after it.
	HeldSince *time.Time
}

type ScheduleUpdate struct {
	SessionID         int64
	CoachingPackageID *int64
	PaymentIntentID   *string
}

type CloseUpdate struct {
	SessionID     int64
	FromStatus    string
	ToStatus      string
	Refunded      bool
	RefundID      *string
	NoShowParty   *string
	ReportedBy    *int64
	PaymentIntent *string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, candidate_id, interviewer_id, session_type, scheduled_at, duration_min,
	status, payment_status, price_cents, platform_fee_cents, payout_cents, coaching_package_id,
	stripe_payment_intent_id, stripe_refund_id, payout_id, no_show_party, no_show_reported_by,
	created_at, updated_at`

func scanSession(row interface{ Scan(dest ...any) error }) (*models.ExpertSession, error) {
	var session models.ExpertSession
	err := row.Scan(
		&session.ID,
		&session.CandidateID,
		&session.InterviewerID,
		&session.SessionType,
		&session.ScheduledAt,
		&session.DurationMinutes,
		&session.Status,
		&session.PaymentStatus,
		&session.PriceCents,
		&session.PlatformFeeCents,
		&session.PayoutCents,
		&session.CoachingPackageID,
		&session.StripePaymentIntentID,
		&session.StripeRefundID,
		&session.PayoutID,
		&session.NoShowParty,
		&session.NoShowReportedBy,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.ExpertSession, error) {
	query := `
		INSERT INTO expert_sessions (
			candidate_id, interviewer_id, session_type, scheduled_at, duration_min,
			status, payment_status, price_cents, platform_fee_cents, payout_cents
		)
		VALUES ($1, $2, $3, $4, $5, 'pending_payment', 'unpaid', $6, $7, $8)
		RETURNING ` + sessionColumns

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.CandidateID,
		input.InterviewerID,
		input.SessionType,
		input.ScheduledAt,
		input.DurationMinutes,
		input.PriceCents,
		input.PlatformFeeCents,
		input.PayoutCents,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.ExpertSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM expert_sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.ExpertSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM expert_sessions WHERE id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.ExpertSession, error) {
	actorColumn := "candidate_id"
	if filter.Role == models.RoleInterviewer {
		actorColumn = "interviewer_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_min * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_min * INTERVAL '1 minute')) <= NOW()",
		)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM expert_sessions
		WHERE %s
		ORDER BY scheduled_at ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	return r.collect(ctx, query, args...)
}

// LockInterviewerSchedule serializes schedule writers for one interviewer until the
// surrounding transaction ends.
func (r *SessionRepository) LockInterviewerSchedule(ctx context.Context, interviewerID int64) error {
	_, err := r.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", interviewerID)
	return err
}

// HasConflict mirrors services.SlotConflicts: an active session conflicts when it starts
// before the requested end and ends after the requested start minus the buffer. Pending
// sessions only count while their payment hold is live.
func (r *SessionRepository) HasConflict(ctx context.Context, q ConflictQuery) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM expert_sessions
			WHERE interviewer_id = $1
			  AND id <> $5
			  AND (
				status IN ('scheduled', 'in_progress')
				OR (status = 'pending_payment' AND $6::timestamptz IS NOT NULL AND created_at > $6::timestamptz)
			  )
			  AND scheduled_at < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
			  AND (scheduled_at + (duration_min * INTERVAL '1 minute')) > ($2::timestamptz - ($4::int * INTERVAL '1 second'))
		)
	`
	var hasConflict bool
	err := r.db.QueryRow(
		ctx,
		query,
		q.InterviewerID,
		q.ScheduledAt,
		q.DurationMinutes,
		int(q.Buffer/time.Second),
		q.ExcludeSessionID,
		q.HeldSince,
	).Scan(&hasConflict)
	if err != nil {
		return false, err
	}
	return hasConflict, nil
}

// MarkScheduled moves a pending_payment session to scheduled/paid. pgx.ErrNoRows means
// the session was no longer pending.
func (r *SessionRepository) MarkScheduled(
	ctx context.Context,
	input ScheduleUpdate,
) (*models.ExpertSession, error) {
	query := `
		UPDATE expert_sessions
		SET status = 'scheduled',
			payment_status = 'paid',
			coaching_package_id = COALESCE($2, coaching_package_id),
			stripe_payment_intent_id = COALESCE($3, stripe_payment_intent_id),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending_payment'
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, input.SessionID, input.CoachingPackageID, input.PaymentIntentID))
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus string,
	nextStatus string,
) (*models.ExpertSession, error) {
	query := `
		UPDATE expert_sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// Close moves a session into a terminal state, optionally recording a refund. The
// update is guarded by FromStatus.
func (r *SessionRepository) Close(ctx context.Context, input CloseUpdate) (*models.ExpertSession, error) {
	query := `
		UPDATE expert_sessions
		SET status = $3,
			payment_status = CASE WHEN $4::boolean THEN 'refunded' ELSE payment_status END,
			stripe_refund_id = COALESCE($5, stripe_refund_id),
			no_show_party = COALESCE($6, no_show_party),
			no_show_reported_by = COALESCE($7, no_show_reported_by),
			stripe_payment_intent_id = COALESCE($8, stripe_payment_intent_id),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.FromStatus,
		input.ToStatus,
		input.Refunded,
		input.RefundID,
		input.NoShowParty,
		input.ReportedBy,
		input.PaymentIntent,
	))
}

// MarkRefundedByPaymentIntent reports whether a paid session was flipped to refunded.
func (r *SessionRepository) MarkRefundedByPaymentIntent(
	ctx context.Context,
	paymentIntentID string,
	refundID *string,
) (bool, error) {
	query := `
		UPDATE expert_sessions
		SET payment_status = 'refunded',
			stripe_refund_id = COALESCE($2, stripe_refund_id),
			updated_at = NOW()
		WHERE stripe_payment_intent_id = $1 AND payment_status = 'paid' AND payout_id IS NULL
	`
	tag, err := r.db.Exec(ctx, query, paymentIntentID, refundID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListPayoutEligibleForUpdate locks the sessions an interviewer can be paid for: completed
// sessions and candidate no-shows that are paid, ended and not yet claimed by a payout.
func (r *SessionRepository) ListPayoutEligibleForUpdate(
	ctx context.Context,
	interviewerID int64,
	now time.Time,
) ([]models.ExpertSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM expert_sessions
		WHERE interviewer_id = $1
		  AND payment_status = 'paid'
		  AND payout_id IS NULL
		  AND (status = 'completed' OR (status = 'no_show' AND no_show_party = 'candidate'))
		  AND (scheduled_at + (duration_min * INTERVAL '1 minute')) <= $2
		ORDER BY scheduled_at ASC, id ASC
		FOR UPDATE
	`
	return r.collect(ctx, query, interviewerID, now)
}

func (r *SessionRepository) AssignPayout(ctx context.Context, sessionIDs []int64, payoutID int64) error {
	query := `
		UPDATE expert_sessions
		SET payout_id = $2, updated_at = NOW()
		WHERE id = ANY($1) AND payout_id IS NULL
	`
	tag, err := r.db.Exec(ctx, query, sessionIDs, payoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != int64(len(sessionIDs)) {
		return fmt.Errorf("assign payout %d: claimed %d of %d sessions", payoutID, tag.RowsAffected(), len(sessionIDs))
	}
	return nil
}

func (r *SessionRepository) ReleasePayout(ctx context.Context, payoutID int64) error {
	query := `
		UPDATE expert_sessions
		SET payout_id = NULL, updated_at = NOW()
		WHERE payout_id = $1 AND payment_status = 'paid'
	`
	_, err := r.db.Exec(ctx, query, payoutID)
	return err
}

func (r *SessionRepository) MarkTransferred(ctx context.Context, payoutID int64) (int64, error) {
	query := `
		UPDATE expert_sessions
		SET payment_status = 'transferred', updated_at = NOW()
		WHERE payout_id = $1 AND payment_status = 'paid'
	`
	tag, err := r.db.Exec(ctx, query, payoutID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) collect(ctx context.Context, query string, args ...any) ([]models.ExpertSession, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.ExpertSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
