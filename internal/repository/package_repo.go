package repository

import (
	"context"
	"time"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type CreatePackageInput struct {
	UserID        int64
	Name          string
	TotalSessions int
	PriceCents    int64
	ValidityDays  int
}

type PackageRepository struct {
	db DBTX
}

func NewPackageRepository(db DBTX) *PackageRepository {
	return &PackageRepository{db: db}
}

const packageColumns = `id, user_id, name, total_sessions, remaining_sessions, used_sessions, price_cents,
	status, validity_days, expires_at, stripe_checkout_session_id, created_at, updated_at`

func scanPackage(row interface{ Scan(dest ...any) error }) (*models.CoachingPackage, error) {
	var pkg models.CoachingPackage
	err := row.Scan(
		&pkg.ID,
		&pkg.UserID,
		&pkg.Name,
		&pkg.TotalSessions,
		&pkg.RemainingSessions,
		&pkg.UsedSessions,
		&pkg.PriceCents,
		&pkg.Status,
		&pkg.ValidityDays,
		&pkg.ExpiresAt,
		&pkg.StripeCheckoutSessionID,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Create inserts a package awaiting checkout. It is activated by the payment webhook.
func (r *PackageRepository) Create(ctx context.Context, input CreatePackageInput) (*models.CoachingPackage, error) {
	query := `
		INSERT INTO coaching_packages (
			user_id, name, total_sessions, remaining_sessions, used_sessions, price_cents, status, validity_days
		)
		VALUES ($1, $2, $3, $3, 0, $4, 'pending', $5)
		RETURNING ` + packageColumns
	return scanPackage(r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.Name,
		input.TotalSessions,
		input.PriceCents,
		input.ValidityDays,
	))
}

// ExpireStale flips the user's active packages whose expiry has passed.
func (r *PackageRepository) ExpireStale(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `
		UPDATE coaching_packages
		SET status = 'expired', updated_at = NOW()
		WHERE user_id = $1
		  AND status = 'active'
		  AND expires_at IS NOT NULL
		  AND expires_at <= $2
	`
	tag, err := r.db.Exec(ctx, query, userID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PackageRepository) ListByUser(ctx context.Context, userID int64) ([]models.CoachingPackage, error) {
	query := `
		SELECT ` + packageColumns + `
		FROM coaching_packages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]models.CoachingPackage, 0)
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return packages, nil
}

func (r *PackageRepository) GetByIDForUpdate(ctx context.Context, packageID int64) (*models.CoachingPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM coaching_packages WHERE id = $1 FOR UPDATE`
	return scanPackage(r.db.QueryRow(ctx, query, packageID))
}

// Consume takes one session from an active package with sessions left, marking it
// exhausted when the last one is used.
func (r *PackageRepository) Consume(ctx context.Context, packageID int64) (*models.CoachingPackage, error) {
	query := `
		UPDATE coaching_packages
		SET remaining_sessions = remaining_sessions - 1,
			used_sessions = used_sessions + 1,
			status = CASE WHEN remaining_sessions - 1 = 0 THEN 'exhausted' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND remaining_sessions > 0
		RETURNING ` + packageColumns
	return scanPackage(r.db.QueryRow(ctx, query, packageID))
}

// Restore gives one used session back. The package returns to active unless it has
// already passed its expiry.
func (r *PackageRepository) Restore(ctx context.Context, packageID int64, now time.Time) (*models.CoachingPackage, error) {
	query := `
		UPDATE coaching_packages
		SET remaining_sessions = remaining_sessions + 1,
			used_sessions = used_sessions - 1,
			status = CASE
				WHEN expires_at IS NOT NULL AND expires_at <= $2 THEN 'expired'
				ELSE 'active'
			END,
			updated_at = NOW()
		WHERE id = $1 AND used_sessions > 0
		RETURNING ` + packageColumns
	return scanPackage(r.db.QueryRow(ctx, query, packageID, now))
}

// Activate moves a pending package to active. pgx.ErrNoRows means it was not pending.
func (r *PackageRepository) Activate(
	ctx context.Context,
	packageID int64,
	checkoutSessionID string,
	now time.Time,
) (*models.CoachingPackage, error) {
	query := `
		UPDATE coaching_packages
		SET status = 'active',
			stripe_checkout_session_id = $2,
			expires_at = $3::timestamptz + (validity_days * INTERVAL '1 day'),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + packageColumns
	return scanPackage(r.db.QueryRow(ctx, query, packageID, checkoutSessionID, now))
}
