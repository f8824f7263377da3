package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

type recruiterApplicationService interface {
	GetCompanyCredits(ctx context.Context, recruiterID int64) (*services.CompanyCredits, error)
	CreateInterviewRequest(ctx context.Context, recruiterID int64, input services.CreateInterviewRequestInput) (*models.InterviewRequest, error)
	ListInterviewRequests(ctx context.Context, actorID int64, role string) ([]models.InterviewRequest, error)
	RespondInterviewRequest(ctx context.Context, candidateID int64, requestID int64, accept bool) (*models.InterviewRequest, error)
}

type RecruiterHandler struct {
	service recruiterApplicationService
	logger  zerolog.Logger
}

func NewRecruiterHandler(service recruiterApplicationService, logger zerolog.Logger) *RecruiterHandler {
	return &RecruiterHandler{service: service, logger: logger}
}

type createInterviewRequestRequest struct {
	CandidateID int64   `json:"candidate_id" validate:"required,gt=0"`
	RoleTitle   string  `json:"role_title" validate:"required,max=200"`
	Message     *string `json:"message" validate:"omitempty,max=2000"`
}

type respondInterviewRequestRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

func (h *RecruiterHandler) GetCredits(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if role != models.RoleRecruiter {
		return respondError(c, h.logger, services.ErrForbidden)
	}

	credits, err := h.service.GetCompanyCredits(c.Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(credits)
}

func (h *RecruiterHandler) CreateInterviewRequest(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if role != models.RoleRecruiter {
		return respondError(c, h.logger, services.ErrForbidden)
	}

	var req createInterviewRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	request, err := h.service.CreateInterviewRequest(c.Context(), userID, services.CreateInterviewRequestInput{
		CandidateID: req.CandidateID,
		RoleTitle:   req.RoleTitle,
		Message:     req.Message,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"interview_request": request})
}

func (h *RecruiterHandler) ListInterviewRequests(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	requests, err := h.service.ListInterviewRequests(c.Context(), userID, role)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"interview_requests": requests})
}

func (h *RecruiterHandler) RespondInterviewRequest(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if role != models.RoleCandidate {
		return respondError(c, h.logger, services.ErrForbidden)
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid interview request id")
	}

	var req respondInterviewRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	request, err := h.service.RespondInterviewRequest(c.Context(), userID, requestID, *req.Accept)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"interview_request": request})
}
