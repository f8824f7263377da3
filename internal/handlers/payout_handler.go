package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

type payoutApplicationService interface {
	RequestPayout(ctx context.Context, interviewerID int64) (*models.InterviewerPayout, error)
	ListPayouts(ctx context.Context, interviewerID int64) ([]models.InterviewerPayout, error)
}

type PayoutHandler struct {
	service payoutApplicationService
	logger  zerolog.Logger
}

func NewPayoutHandler(service payoutApplicationService, logger zerolog.Logger) *PayoutHandler {
	return &PayoutHandler{service: service, logger: logger}
}

func (h *PayoutHandler) RequestPayout(c *fiber.Ctx) error {
	interviewerID, err := h.interviewer(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	payout, err := h.service.RequestPayout(c.Context(), interviewerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payout": payout})
}

func (h *PayoutHandler) ListPayouts(c *fiber.Ctx) error {
	interviewerID, err := h.interviewer(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	payouts, err := h.service.ListPayouts(c.Context(), interviewerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"payouts": payouts})
}

func (h *PayoutHandler) interviewer(c *fiber.Ctx) (int64, error) {
	userID, role, err := currentUser(c)
	if err != nil {
		return 0, err
	}
	if role != models.RoleInterviewer {
		return 0, services.ErrForbidden
	}
	return userID, nil
}
