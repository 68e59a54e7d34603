package server

import (
	"marketplace/internal/middleware"
	"marketplace/internal/models"

	"github.com/gofiber/fiber/v2"
)

type otpRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RequestOTP emails a one-time sign-in code.
func (s *Server) RequestOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.auth.SignInWithOTP(c.UserContext(), req.Email); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If the address is valid, a sign-in code is on its way",
	})
}

// VerifyOTP exchanges a sign-in code for a session token.
func (s *Server) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Code == "" {
		return respondError(c, models.NewValidationError("Code is required"))
	}
	token, user, err := s.auth.VerifyOTP(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// GetSession returns the signed-in user.
func (s *Server) GetSession(c *fiber.Ctx) error {
	return c.JSON(middleware.CurrentSession(c))
}

// SignOut revokes the presented token.
func (s *Server) SignOut(c *fiber.Ctx) error {
	token, err := middleware.BearerToken(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.auth.SignOut(c.UserContext(), token); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
