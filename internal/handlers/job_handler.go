package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

type jobSearcher interface {
	Search(ctx context.Context, query string, location string) ([]models.JobListing, error)
}

type JobHandler struct {
	service jobSearcher
	logger  zerolog.Logger
}

func NewJobHandler(service jobSearcher, logger zerolog.Logger) *JobHandler {
	return &JobHandler{service: service, logger: logger}
}

func (h *JobHandler) Search(c *fiber.Ctx) error {
	jobs, err := h.service.Search(c.Context(), c.Query("q"), c.Query("location"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}
