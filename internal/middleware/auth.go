package middleware

import (
	"context"
	"strings"

	"marketplace/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SessionResolver turns a bearer token into a session.
type SessionResolver interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
}

const (
	localUserID  = "userID"
	localSession = "session"
)

// AuthRequired rejects requests without a valid bearer token. On success the
// user id is stored in c.Locals("userID") and the session in
// c.Locals("session").
func AuthRequired(sessions SessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := BearerToken(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		if err := authenticate(c, sessions, token); err != nil {
			return models.RespondWithError(c, models.StatusFor(err), err)
		}
		return c.Next()
	}
}

// OptionalAuth attaches the session when a valid bearer token is present and
// lets anonymous requests through.
func OptionalAuth(sessions SessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		token, err := BearerToken(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		if err := authenticate(c, sessions, token); err != nil {
			return models.RespondWithError(c, models.StatusFor(err), err)
		}
		return c.Next()
	}
}

func authenticate(c *fiber.Ctx, sessions SessionResolver, token string) error {
	sess, err := sessions.GetSession(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(localUserID, sess.User.ID)
	c.Locals(localSession, sess)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, sess.User.ID))
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", models.NewUnauthorizedError("Authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", models.NewUnauthorizedError("Invalid authorization header format")
	}
	return token, nil
}

// CurrentUserID returns the authenticated user id, or "" for anonymous
// requests.
func CurrentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// CurrentSession returns the authenticated session, or nil.
func CurrentSession(c *fiber.Ctx) *models.Session {
	sess, _ := c.Locals(localSession).(*models.Session)
	return sess
}
