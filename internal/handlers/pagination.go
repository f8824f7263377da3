package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// pageParams reads page and limit from the query string, clamping limit to maxPageLimit.
func pageParams(c *fiber.Ctx) (page int, limit int) {
	page = parsePositiveInt(c.Query("page"), 1)
	limit = min(parsePositiveInt(c.Query("limit"), defaultPageLimit), maxPageLimit)
	return page, limit
}

func paginationMeta(page, limit, total int) models.PaginationMeta {
	meta := models.PaginationMeta{Page: page, Limit: limit, Total: total}
	if total > 0 && limit > 0 {
		meta.TotalPages = (total + limit - 1) / limit
	}
	return meta
}
