package server

import (
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTasks returns the task view for the tab and status query parameters.
func (s *Server) GetTasks(c *fiber.Ctx) error {
	tasks, err := s.tasks.List(service.TaskFilter{Tab: c.Query("tab"), Status: c.Query("status")})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"tasks": tasks,
		"stats": s.tasks.Stats(),
		"tabs":  s.tasks.TabCounts(),
	})
}

// GetReviews returns the review view for the filter query parameter.
func (s *Server) GetReviews(c *fiber.Ctx) error {
	reviews, err := s.reviews.List(c.Query("filter"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"reviews": reviews,
		"summary": s.reviews.Summary(),
		"filters": s.reviews.FilterCounts(),
		"badges":  s.reviews.Badges(),
	})
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
