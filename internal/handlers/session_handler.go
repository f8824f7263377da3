package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

type sessionApplicationService interface {
	Book(ctx context.Context, candidateID int64, input services.BookSessionInput) (*models.ExpertSession, error)
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.ExpertSession, error)
	GetSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.ExpertSession, error)
	StartSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.ExpertSession, error)
	CompleteSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.ExpertSession, error)
	CancelSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.ExpertSession, error)
	ReportNoShow(ctx context.Context, reporterID int64, reporterRole string, sessionID int64, reportedParty string) (*models.ExpertSession, error)
}

type SessionHandler struct {
	service sessionApplicationService
	logger  zerolog.Logger
}

func NewSessionHandler(service sessionApplicationService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

type bookSessionRequest struct {
	InterviewerID   int64  `json:"interviewer_id" validate:"required,gt=0"`
	SessionType     string `json:"session_type" validate:"required,oneof=coding system_design behavioral mock"`
	ScheduledAt     string `json:"scheduled_at" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gte=15,lte=240"`
}

type reportNoShowRequest struct {
	Party string `json:"party" validate:"required,oneof=candidate interviewer"`
}

func (h *SessionHandler) BookSession(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if role != models.RoleCandidate {
		return respondError(c, h.logger, services.ErrForbidden)
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateBookSessionRequest(req); msg != "" {
		return badRequest(c, msg)
	}
	scheduledAt, _ := parseTimestamp(req.ScheduledAt)

	session, err := h.service.Book(c.Context(), userID, services.BookSessionInput{
		InterviewerID:   req.InterviewerID,
		SessionType:     req.SessionType,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	sessions, err := h.service.ListSessions(c.Context(), userID, role, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: strings.TrimSpace(c.Query("timeframe")),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	return h.sessionAction(c, h.service.GetSession)
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	return h.sessionAction(c, h.service.StartSession)
}

func (h *SessionHandler) CompleteSession(c *fiber.Ctx) error {
	return h.sessionAction(c, h.service.CompleteSession)
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	return h.sessionAction(c, h.service.CancelSession)
}

func (h *SessionHandler) ReportNoShow(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req reportNoShowRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	session, err := h.service.ReportNoShow(c.Context(), userID, role, sessionID, req.Party)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

type sessionOperation func(ctx context.Context, actorID int64, role string, sessionID int64) (*models.ExpertSession, error)

func (h *SessionHandler) sessionAction(c *fiber.Ctx, op sessionOperation) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	session, err := op(c.Context(), userID, role, sessionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}
