package repository

import (
	"context"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type CreateInterviewRequestInput struct {
	CompanyID    int64
	RecruiterID  int64
	CandidateID  int64
	RoleTitle    string
	Message      *string
	CreditsSpent int64
}

type InterviewRequestRepository struct {
	db DBTX
}

func NewInterviewRequestRepository(db DBTX) *InterviewRequestRepository {
	return &InterviewRequestRepository{db: db}
}

const interviewRequestColumns = `id, company_id, recruiter_id, candidate_id, role_title, message,
	credits_spent, status, created_at, updated_at`

func scanInterviewRequest(row interface{ Scan(dest ...any) error }) (*models.InterviewRequest, error) {
	var request models.InterviewRequest
	err := row.Scan(
		&request.ID,
		&request.CompanyID,
		&request.RecruiterID,
		&request.CandidateID,
		&request.RoleTitle,
		&request.Message,
		&request.CreditsSpent,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *InterviewRequestRepository) Create(
	ctx context.Context,
	input CreateInterviewRequestInput,
) (*models.InterviewRequest, error) {
	query := `
		INSERT INTO interview_requests (company_id, recruiter_id, candidate_id, role_title, message, credits_spent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + interviewRequestColumns
	return scanInterviewRequest(r.db.QueryRow(
		ctx,
		query,
		input.CompanyID,
		input.RecruiterID,
		input.CandidateID,
		input.RoleTitle,
		input.Message,
		input.CreditsSpent,
	))
}

func (r *InterviewRequestRepository) ListByCompany(ctx context.Context, companyID int64) ([]models.InterviewRequest, error) {
	query := `
		SELECT ` + interviewRequestColumns + `
		FROM interview_requests
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.collect(ctx, query, companyID)
}

func (r *InterviewRequestRepository) ListByCandidate(ctx context.Context, candidateID int64) ([]models.InterviewRequest, error) {
	query := `
		SELECT ` + interviewRequestColumns + `
		FROM interview_requests
		WHERE candidate_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.collect(ctx, query, candidateID)
}

func (r *InterviewRequestRepository) GetByID(ctx context.Context, requestID int64) (*models.InterviewRequest, error) {
	query := `SELECT ` + interviewRequestColumns + ` FROM interview_requests WHERE id = $1`
	return scanInterviewRequest(r.db.QueryRow(ctx, query, requestID))
}

// Respond answers a pending request addressed to the candidate. pgx.ErrNoRows means the
// request is not pending or belongs to someone else.
func (r *InterviewRequestRepository) Respond(
	ctx context.Context,
	requestID int64,
	candidateID int64,
	status string,
) (*models.InterviewRequest, error) {
	query := `
		UPDATE interview_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND candidate_id = $2 AND status = 'pending'
		RETURNING ` + interviewRequestColumns
	return scanInterviewRequest(r.db.QueryRow(ctx, query, requestID, candidateID, status))
}

func (r *InterviewRequestRepository) collect(ctx context.Context, query string, args ...any) ([]models.InterviewRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.InterviewRequest, 0)
	for rows.Next() {
		request, err := scanInterviewRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}
