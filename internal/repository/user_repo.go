package repository

import (
	"context"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, role, subscription_tier, subscription_status, stripe_customer_id,
	stripe_subscription_id, talent_opt_in, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Role,
		&user.SubscriptionTier,
		&user.SubscriptionStatus,
		&user.StripeCustomerID,
		&user.StripeSubscriptionID,
		&user.TalentOptIn,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

type SubscriptionUpdate struct {
	Tier           string
	Status         string
	CustomerID     *string
	SubscriptionID *string
}

func (r *UserRepository) UpdateSubscription(ctx context.Context, userID int64, input SubscriptionUpdate) (*models.User, error) {
	query := `
		UPDATE users
		SET subscription_tier = $2,
			subscription_status = $3,
			stripe_customer_id = COALESCE($4, stripe_customer_id),
			stripe_subscription_id = COALESCE($5, stripe_subscription_id),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, userID, input.Tier, input.Status, input.CustomerID, input.SubscriptionID))
}

// UpdateSubscriptionBySubscriptionID reports whether a user row changed. A nil tier keeps
// the current tier.
func (r *UserRepository) UpdateSubscriptionBySubscriptionID(
	ctx context.Context,
	subscriptionID string,
	tier *string,
	status string,
) (bool, error) {
	query := `
		UPDATE users
		SET subscription_tier = COALESCE($2, subscription_tier),
			subscription_status = $3,
			updated_at = NOW()
		WHERE stripe_subscription_id = $1
		  AND (subscription_tier <> COALESCE($2, subscription_tier) OR subscription_status IS DISTINCT FROM $3)
	`
	tag, err := r.db.Exec(ctx, query, subscriptionID, tier, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
