package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

type interviewerDirectory interface {
	ListInterviewers(ctx context.Context, search services.InterviewerSearch) ([]models.Interviewer, int, error)
	GetInterviewer(ctx context.Context, interviewerID int64) (*models.Interviewer, error)
	UpsertProfile(ctx context.Context, userID int64, role string, input services.UpsertInterviewerProfileInput) (*models.Interviewer, error)
	UpdateVerification(ctx context.Context, role string, interviewerID int64, status string, active bool) (*models.Interviewer, error)
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, interviewerID int64, scheduledAt time.Time, durationMinutes int) (bool, error)
}

type InterviewerHandler struct {
	directory    interviewerDirectory
	availability availabilityChecker
	logger       zerolog.Logger
}

func NewInterviewerHandler(
	directory interviewerDirectory,
	availability availabilityChecker,
	logger zerolog.Logger,
) *InterviewerHandler {
	return &InterviewerHandler{
		directory:    directory,
		availability: availability,
		logger:       logger,
	}
}

type upsertInterviewerProfileRequest struct {
	DisplayName     string   `json:"display_name" validate:"required,max=120"`
	Headline        *string  `json:"headline" validate:"omitempty,max=200"`
	HourlyRateCents int64    `json:"hourly_rate_cents" validate:"required,gt=0"`
	Skills          []string `json:"skills" validate:"max=20"`
	Companies       []string `json:"companies" validate:"max=20"`
	StripeAccountID *string  `json:"stripe_account_id"`
}

type updateVerificationRequest struct {
	Status   string `json:"status" validate:"required,oneof=pending verified rejected"`
	IsActive *bool  `json:"is_active" validate:"required"`
}

func (h *InterviewerHandler) ListInterviewers(c *fiber.Ctx) error {
	page, limit := pageParams(c)

	maxRate, err := parseNonNegativeInt64(c.Query("max_rate_cents"))
	if err != nil {
		return badRequest(c, "max_rate_cents must be a valid non-negative integer")
	}

	interviewers, total, err := h.directory.ListInterviewers(c.Context(), services.InterviewerSearch{
		Skill:        strings.TrimSpace(c.Query("skill")),
		Company:      strings.TrimSpace(c.Query("company")),
		MaxRateCents: maxRate,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"interviewers": interviewers,
		"pagination":   paginationMeta(page, limit, total),
	})
}

func (h *InterviewerHandler) GetInterviewer(c *fiber.Ctx) error {
	interviewerID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid interviewer id")
	}

	interviewer, err := h.directory.GetInterviewer(c.Context(), interviewerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"interviewer": interviewer})
}

func (h *InterviewerHandler) GetAvailability(c *fiber.Ctx) error {
	interviewerID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid interviewer id")
	}
	scheduledAt, ok := parseTimestamp(c.Query("scheduled_at"))
	if !ok {
		return badRequest(c, "scheduled_at must be a valid RFC3339 timestamp")
	}
	duration, err := strconv.Atoi(c.Query("duration_minutes", "60"))
	if err != nil {
		return badRequest(c, "duration_minutes must be an integer")
	}

	available, err := h.availability.CheckAvailability(c.Context(), interviewerID, scheduledAt, duration)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"interviewer_id":   interviewerID,
		"scheduled_at":     scheduledAt.UTC(),
		"duration_minutes": duration,
		"available":        available,
	})
}

func (h *InterviewerHandler) UpsertMyProfile(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req upsertInterviewerProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateInterviewerProfileRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	interviewer, err := h.directory.UpsertProfile(c.Context(), userID, role, services.UpsertInterviewerProfileInput{
		DisplayName:     req.DisplayName,
		Headline:        req.Headline,
		HourlyRateCents: req.HourlyRateCents,
		Skills:          req.Skills,
		Companies:       req.Companies,
		StripeAccountID: req.StripeAccountID,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"interviewer": interviewer})
}

func (h *InterviewerHandler) UpdateVerification(c *fiber.Ctx) error {
	_, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	interviewerID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid interviewer id")
	}

	var req updateVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	interviewer, err := h.directory.UpdateVerification(c.Context(), role, interviewerID, req.Status, *req.IsActive)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"interviewer": interviewer})
}
