package repository

import (
	"context"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type CreatePayoutInput struct {
	InterviewerID  int64
	AmountCents    int64
	Currency       string
	SessionIDs     []int64
	IdempotencyKey string
}

type PayoutRepository struct {
	db DBTX
}

func NewPayoutRepository(db DBTX) *PayoutRepository {
	return &PayoutRepository{db: db}
}

const payoutColumns = `id, interviewer_id, amount_cents, currency, session_ids, status,
	idempotency_key::text, stripe_transfer_id, failure_reason, created_at, completed_at`

func scanPayout(row interface{ Scan(dest ...any) error }) (*models.InterviewerPayout, error) {
	var payout models.InterviewerPayout
	err := row.Scan(
		&payout.ID,
		&payout.InterviewerID,
		&payout.AmountCents,
		&payout.Currency,
		&payout.SessionIDs,
		&payout.Status,
		&payout.IdempotencyKey,
		&payout.StripeTransferID,
		&payout.FailureReason,
		&payout.CreatedAt,
		&payout.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *PayoutRepository) Create(ctx context.Context, input CreatePayoutInput) (*models.InterviewerPayout, error) {
	query := `
		INSERT INTO interviewer_payouts (interviewer_id, amount_cents, currency, session_ids, status, idempotency_key)
		VALUES ($1, $2, $3, $4, 'pending', $5::text::uuid)
		RETURNING ` + payoutColumns
	return scanPayout(r.db.QueryRow(
		ctx,
		query,
		input.InterviewerID,
		input.AmountCents,
		input.Currency,
		input.SessionIDs,
		input.IdempotencyKey,
	))
}

func (r *PayoutRepository) GetByID(ctx context.Context, payoutID int64) (*models.InterviewerPayout, error) {
	query := `SELECT ` + payoutColumns + ` FROM interviewer_payouts WHERE id = $1`
	return scanPayout(r.db.QueryRow(ctx, query, payoutID))
}

func (r *PayoutRepository) ListByInterviewer(ctx context.Context, interviewerID int64) ([]models.InterviewerPayout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM interviewer_payouts
		WHERE interviewer_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, interviewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := make([]models.InterviewerPayout, 0)
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *payout)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payouts, nil
}

// MarkCompleted records the transfer on a pending payout. pgx.ErrNoRows means the payout
// had already left pending.
func (r *PayoutRepository) MarkCompleted(
	ctx context.Context,
	payoutID int64,
	transferID string,
) (*models.InterviewerPayout, error) {
	query := `
		UPDATE interviewer_payouts
		SET status = 'completed', stripe_transfer_id = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + payoutColumns
	return scanPayout(r.db.QueryRow(ctx, query, payoutID, transferID))
}

func (r *PayoutRepository) MarkFailed(
	ctx context.Context,
	payoutID int64,
	reason string,
) (*models.InterviewerPayout, error) {
	query := `
		UPDATE interviewer_payouts
		SET status = 'failed', failure_reason = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + payoutColumns
	return scanPayout(r.db.QueryRow(ctx, query, payoutID, reason))
}
