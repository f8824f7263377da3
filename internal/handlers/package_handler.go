package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

type packageApplicationService interface {
	CreatePackage(ctx context.Context, userID int64, input services.CreatePackageInput) (*models.CoachingPackage, error)
	ListPackages(ctx context.Context, userID int64) ([]models.CoachingPackage, error)
	ConsumePackage(ctx context.Context, userID int64, packageID int64, sessionID int64) (*services.PackageConsumption, error)
}

type PackageHandler struct {
	service packageApplicationService
	logger  zerolog.Logger
}

func NewPackageHandler(service packageApplicationService, logger zerolog.Logger) *PackageHandler {
	return &PackageHandler{service: service, logger: logger}
}

type createPackageRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	TotalSessions int    `json:"total_sessions" validate:"required,gt=0,lte=50"`
	PriceCents    int64  `json:"price_cents" validate:"gte=0"`
	ValidityDays  int    `json:"validity_days" validate:"gte=0,lte=365"`
}

type usePackageRequest struct {
	SessionID int64 `json:"session_id" validate:"required,gt=0"`
}

func (h *PackageHandler) ListPackages(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	packages, err := h.service.ListPackages(c.Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"packages": packages})
}

func (h *PackageHandler) CreatePackage(c *fiber.Ctx) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if role != models.RoleCandidate {
		return respondError(c, h.logger, services.ErrForbidden)
	}

	var req createPackageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	pkg, err := h.service.CreatePackage(c.Context(), userID, services.CreatePackageInput{
		Name:          req.Name,
		TotalSessions: req.TotalSessions,
		PriceCents:    req.PriceCents,
		ValidityDays:  req.ValidityDays,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"package": pkg})
}

func (h *PackageHandler) UsePackage(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	packageID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid package id")
	}

	var req usePackageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateRequest(req); msg != "" {
		return badRequest(c, msg)
	}

	result, err := h.service.ConsumePackage(c.Context(), userID, packageID, req.SessionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(result)
}
