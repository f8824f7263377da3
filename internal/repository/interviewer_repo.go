package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type InterviewerListFilter struct {
	Skill        string
	Company      string
	MaxRateCents int64
	Offset       int
	Limit        int
}

type UpsertInterviewerInput struct {
	DisplayName     string
	Headline        *string
	HourlyRateCents int64
	Skills          []string
	Companies       []string
	StripeAccountID *string
}

type InterviewerRepository struct {
	db DBTX
}

func NewInterviewerRepository(db DBTX) *InterviewerRepository {
	return &InterviewerRepository{db: db}
}

const interviewerColumns = `user_id, display_name, headline, hourly_rate_cents, verification_status,
	is_active, skills, companies, stripe_account_id, created_at, updated_at`

func scanInterviewer(row interface{ Scan(dest ...any) error }) (*models.Interviewer, error) {
	var interviewer models.Interviewer
	err := row.Scan(
		&interviewer.UserID,
		&interviewer.DisplayName,
		&interviewer.Headline,
		&interviewer.HourlyRateCents,
		&interviewer.VerificationStatus,
		&interviewer.IsActive,
		&interviewer.Skills,
		&interviewer.Companies,
		&interviewer.StripeAccountID,
		&interviewer.CreatedAt,
		&interviewer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if interviewer.Skills == nil {
		interviewer.Skills = []string{}
	}
	if interviewer.Companies == nil {
		interviewer.Companies = []string{}
	}
	return &interviewer, nil
}

func (r *InterviewerRepository) GetByUserID(ctx context.Context, userID int64) (*models.Interviewer, error) {
	query := `SELECT ` + interviewerColumns + ` FROM interviewers WHERE user_id = $1`
	return scanInterviewer(r.db.QueryRow(ctx, query, userID))
}

// Upsert creates the profile in pending verification or updates an existing one
// without touching its verification state.
func (r *InterviewerRepository) Upsert(
	ctx context.Context,
	userID int64,
	input UpsertInterviewerInput,
) (*models.Interviewer, error) {
	query := `
		INSERT INTO interviewers (
			user_id, display_name, headline, hourly_rate_cents, skills, companies, stripe_account_id
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			headline = EXCLUDED.headline,
			hourly_rate_cents = EXCLUDED.hourly_rate_cents,
			skills = EXCLUDED.skills,
			companies = EXCLUDED.companies,
			stripe_account_id = COALESCE(EXCLUDED.stripe_account_id, interviewers.stripe_account_id),
			updated_at = NOW()
		RETURNING ` + interviewerColumns
	return scanInterviewer(r.db.QueryRow(
		ctx,
		query,
		userID,
		input.DisplayName,
		input.Headline,
		input.HourlyRateCents,
		input.Skills,
		input.Companies,
		input.StripeAccountID,
	))
}

func (r *InterviewerRepository) UpdateVerification(
	ctx context.Context,
	userID int64,
	status string,
	active bool,
) (*models.Interviewer, error) {
	query := `
		UPDATE interviewers
		SET verification_status = $2, is_active = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + interviewerColumns
	return scanInterviewer(r.db.QueryRow(ctx, query, userID, status, active))
}

func (r *InterviewerRepository) List(
	ctx context.Context,
	filter InterviewerListFilter,
) ([]models.Interviewer, int, error) {
	args := []any{}
	whereParts := []string{"verification_status = 'verified'", "is_active = TRUE"}

	if skill := strings.TrimSpace(filter.Skill); skill != "" {
		args = append(args, skill)
		whereParts = append(whereParts, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(skills) AS skill WHERE skill ILIKE '%%' || $%d || '%%')",
			len(args),
		))
	}
	if company := strings.TrimSpace(filter.Company); company != "" {
		args = append(args, company)
		whereParts = append(whereParts, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(companies) AS company WHERE company ILIKE '%%' || $%d || '%%')",
			len(args),
		))
	}
	if filter.MaxRateCents > 0 {
		args = append(args, filter.MaxRateCents)
		whereParts = append(whereParts, fmt.Sprintf("hourly_rate_cents <= $%d", len(args)))
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM interviewers WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM interviewers
		WHERE %s
		ORDER BY hourly_rate_cents ASC, user_id ASC
		LIMIT $%d OFFSET $%d
	`, interviewerColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	interviewers := make([]models.Interviewer, 0)
	for rows.Next() {
		interviewer, err := scanInterviewer(rows)
		if err != nil {
			return nil, 0, err
		}
		interviewers = append(interviewers, *interviewer)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return interviewers, total, nil
}
