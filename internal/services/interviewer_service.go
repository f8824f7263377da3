package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

const (
	maxDisplayNameLength = 120
	maxProfileListItems  = 20
)

type InterviewerService struct {
	store  Store
	logger zerolog.Logger
}

func NewInterviewerService(store Store, logger zerolog.Logger) *InterviewerService {
	return &InterviewerService{
		store:  store,
		logger: logger.With().Str("component", "interviewer_service").Logger(),
	}
}

type InterviewerSearch struct {
	Skill        string
	Company      string
	MaxRateCents int64
	Page         int
	Limit        int
}

type UpsertInterviewerProfileInput struct {
	DisplayName     string
	Headline        *string
	HourlyRateCents int64
	Skills          []string
	Companies       []string
	StripeAccountID *string
}

// ListInterviewers returns one page of bookable interviewers and the total match count.
func (s *InterviewerService) ListInterviewers(ctx context.Context, search InterviewerSearch) ([]models.Interviewer, int, error) {
	if search.Page < 1 {
		search.Page = 1
	}
	if search.Limit < 1 {
		return nil, 0, ErrValidation.WithMessage("limit must be positive")
	}
	if search.MaxRateCents < 0 {
		return nil, 0, ErrValidation.WithMessage("max_rate_cents must not be negative")
	}

	return s.store.Queries().Interviewers.List(ctx, repository.InterviewerListFilter{
		Skill:        search.Skill,
		Company:      search.Company,
		MaxRateCents: search.MaxRateCents,
		Offset:       (search.Page - 1) * search.Limit,
		Limit:        search.Limit,
	})
}

// GetInterviewer only exposes interviewers that can be booked; others look absent.
func (s *InterviewerService) GetInterviewer(ctx context.Context, interviewerID int64) (*models.Interviewer, error) {
	interviewer, err := s.store.Queries().Interviewers.GetByUserID(ctx, interviewerID)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Interviewer not found"))
	}
	if interviewer.VerificationStatus != models.VerificationVerified || !interviewer.IsActive {
		return nil, ErrNotFound.WithMessage("Interviewer not found")
	}
	return interviewer, nil
}

func (s *InterviewerService) UpsertProfile(
	ctx context.Context,
	userID int64,
	role string,
	input UpsertInterviewerProfileInput,
) (*models.Interviewer, error) {
	if role != models.RoleInterviewer {
		return nil, ErrForbidden
	}

	displayName := strings.TrimSpace(input.DisplayName)
	switch {
	case displayName == "":
		return nil, ErrValidation.WithMessage("display_name is required")
	case len(displayName) > maxDisplayNameLength:
		return nil, ErrValidation.WithMessage("display_name is too long")
	case input.HourlyRateCents <= 0:
		return nil, ErrValidation.WithMessage("hourly_rate_cents must be greater than 0")
	case len(input.Skills) > maxProfileListItems || len(input.Companies) > maxProfileListItems:
		return nil, ErrValidation.WithMessage("skills and companies accept at most 20 entries each")
	}

	interviewer, err := s.store.Queries().Interviewers.Upsert(ctx, userID, repository.UpsertInterviewerInput{
		DisplayName:     displayName,
		Headline:        trimOptional(input.Headline),
		HourlyRateCents: input.HourlyRateCents,
		Skills:          normalizeList(input.Skills),
		Companies:       normalizeList(input.Companies),
		StripeAccountID: trimOptional(input.StripeAccountID),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("interviewer_id", userID).Msg("interviewer profile saved")
	return interviewer, nil
}

func (s *InterviewerService) UpdateVerification(
	ctx context.Context,
	role string,
	interviewerID int64,
	status string,
	active bool,
) (*models.Interviewer, error) {
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	switch status {
	case models.VerificationPending, models.VerificationVerified, models.VerificationRejected:
	default:
		return nil, ErrValidation.WithMessage("status must be pending, verified or rejected")
	}

	interviewer, err := s.store.Queries().Interviewers.UpdateVerification(ctx, interviewerID, status, active)
	if err != nil {
		return nil, notFound(err, ErrNotFound.WithMessage("Interviewer not found"))
	}

	s.logger.Info().
		Int64("interviewer_id", interviewerID).
		Str("verification_status", interviewer.VerificationStatus).
		Bool("is_active", interviewer.IsActive).
		Msg("interviewer verification updated")
	return interviewer, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizeList trims entries and drops blanks and case-insensitive duplicates.
func normalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	items := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, trimmed)
	}
	return items
}
