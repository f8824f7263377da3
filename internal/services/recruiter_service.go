package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

const (
	recentLedgerEntries = 20
	maxRoleTitleLength  = 200
	maxMessageLength    = 2000
)

type RecruiterService struct {
	store      Store
	publisher  events.Publisher
	logger     zerolog.Logger
	creditCost int64
}

func NewRecruiterService(store Store, publisher events.Publisher, creditCost int, logger zerolog.Logger) *RecruiterService {
	if creditCost <= 0 {
		creditCost = 1
	}
	return &RecruiterService{
		store:      store,
		publisher:  orNop(publisher),
		logger:     logger.With().Str("component", "recruiter_service").Logger(),
		creditCost: int64(creditCost),
	}
}

type CreateInterviewRequestInput struct {
	CandidateID int64
	RoleTitle   string
	Message     *string
}

type CompanyCredits struct {
	CompanyID     int64                      `json:"company_id"`
	CompanyName   string                     `json:"company_name"`
	CreditBalance int64                      `json:"credit_balance"`
	Ledger        []models.CreditLedgerEntry `json:"ledger"`
}

func (s *RecruiterService) GetCompanyCredits(ctx context.Context, recruiterID int64) (*CompanyCredits, error) {
	q := s.store.Queries()
	company, err := s.companyFor(ctx, q, recruiterID)
	if err != nil {
		return nil, err
	}

	ledger, err := q.Companies.ListLedger(ctx, company.ID, recentLedgerEntries)
	if err != nil {
		return nil, err
	}
	return &CompanyCredits{
		CompanyID:     company.ID,
		CompanyName:   company.Name,
		CreditBalance: company.CreditBalance,
		Ledger:        ledger,
	}, nil
}

// CreateInterviewRequest spends credits and records the request in one transaction, so a
// request never exists without its ledger entry.
func (s *RecruiterService) CreateInterviewRequest(
	ctx context.Context,
	recruiterID int64,
	input CreateInterviewRequestInput,
) (request *models.InterviewRequest, err error) {
	ctx, span := startSpan(ctx, "RecruiterService.CreateInterviewRequest",
		attribute.Int64("recruiter_id", recruiterID),
		attribute.Int64("candidate_id", input.CandidateID),
	)
	defer func() { finishSpan(span, err) }()

	roleTitle := strings.TrimSpace(input.RoleTitle)
	switch {
	case input.CandidateID <= 0:
		return nil, ErrValidation.WithMessage("candidate_id is required")
	case roleTitle == "":
		return nil, ErrValidation.WithMessage("role_title is required")
	case len(roleTitle) > maxRoleTitleLength:
		return nil, ErrValidation.WithMessage("role_title must be at most " + strconv.Itoa(maxRoleTitleLength) + " characters")
	case input.Message != nil && len(*input.Message) > maxMessageLength:
		return nil, ErrValidation.WithMessage("message must be at most " + strconv.Itoa(maxMessageLength) + " characters")
	}

	q := s.store.Queries()
	company, err := s.companyFor(ctx, q, recruiterID)
	if err != nil {
		return nil, err
	}

	candidate, err := q.Users.GetByID(ctx, input.CandidateID)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Candidate not found"))
	}
	if candidate.Role != models.RoleCandidate || !candidate.TalentOptIn {
		return nil, ErrNotFound.WithMessage("Candidate not found")
	}

	var balance int64
	err = s.store.InTx(ctx, pgx.TxOptions{}, func(q Queries) error {
		debited, err := q.Companies.DebitCredits(ctx, company.ID, s.creditCost)
		if err != nil {
			if isNoRows(err) {
				return ErrInsufficientCredits
			}
			return err
		}

		created, err := q.Requests.Create(ctx, repository.CreateInterviewRequestInput{
			CompanyID:    company.ID,
			RecruiterID:  recruiterID,
			CandidateID:  candidate.ID,
			RoleTitle:    roleTitle,
			Message:      input.Message,
			CreditsSpent: s.creditCost,
		})
		if err != nil {
			return err
		}

		balanceAfter := debited.CreditBalance
		if _, err := q.Companies.InsertLedgerEntry(ctx, repository.LedgerEntryInput{
			CompanyID:    company.ID,
			Delta:        -s.creditCost,
			Reason:       models.LedgerReasonInterviewRequest,
			Reference:    "interview_request:" + strconv.FormatInt(created.ID, 10),
			BalanceAfter: &balanceAfter,
		}); err != nil {
			return err
		}

		request = created
		balance = balanceAfter
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("company_id", company.ID).
		Int64("request_id", request.ID).
		Int64("credits_spent", request.CreditsSpent).
		Int64("credit_balance", balance).
		Msg("interview request created")
	publish(ctx, s.publisher, s.logger, events.New(
		events.InterviewRequestCreated,
		"interview_request:"+strconv.FormatInt(request.ID, 10),
		[]int64{request.CandidateID, request.RecruiterID},
		request,
	))
	return request, nil
}

func (s *RecruiterService) ListInterviewRequests(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.InterviewRequest, error) {
	q := s.store.Queries()
	switch role {
	case models.RoleRecruiter:
		company, err := s.companyFor(ctx, q, actorID)
		if err != nil {
			return nil, err
		}
		return q.Requests.ListByCompany(ctx, company.ID)
	case models.RoleCandidate:
		return q.Requests.ListByCandidate(ctx, actorID)
	default:
		return nil, ErrForbidden
	}
}

func (s *RecruiterService) RespondInterviewRequest(
	ctx context.Context,
	candidateID int64,
	requestID int64,
	accept bool,
) (*models.InterviewRequest, error) {
	q := s.store.Queries()
	current, err := q.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Interview request not found"))
	}
	if current.CandidateID != candidateID {
		return nil, ErrNotFound.WithMessage("Interview request not found")
	}
	if current.Status != models.InterviewRequestPending {
		return nil, ErrRequestAlreadyAnswered
	}

	status := models.InterviewRequestDeclined
	if accept {
		status = models.InterviewRequestAccepted
	}
	updated, err := q.Requests.Respond(ctx, requestID, candidateID, status)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrRequestAlreadyAnswered
		}
		return nil, err
	}

	s.logger.Info().Int64("request_id", updated.ID).Str("status", updated.Status).Msg("interview request answered")
	return updated, nil
}

func (s *RecruiterService) companyFor(ctx context.Context, q Queries, recruiterID int64) (*models.RecruiterCompany, error) {
	company, err := q.Companies.GetForMember(ctx, recruiterID)
	if err != nil {
		return nil, notFound(err, ErrForbidden.WithMessage("Recruiter is not a member of a company"))
	}
	return company, nil
}
