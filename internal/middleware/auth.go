package middleware

import (
	"motorhub-backend/internal/application/identity"
	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const userLocal = "user"

// Authenticate resolves the signed-in user of the client and stores it in
// Locals. Requests without one pass through with a nil user.
func Authenticate(ids *identity.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := GetClientID(c)
		if clientID == "" {
			return c.Next()
		}
		user, err := ids.ForClient(clientID).CurrentUser(c.UserContext())
		if err != nil {
			log.Error().Err(err).Str("trace_id", GetTraceID(c)).Msg("auth: resolve current user")
			return response.Internal(c)
		}
		if user != nil {
			c.Locals(userLocal, user)
		}
		return c.Next()
	}
}

// RequireAuth ensures a user is signed in. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the signed-in user (nil if not logged in).
func GetUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals(userLocal).(*domain.User)
	return u
}

// GetUserID returns the signed-in user's id or "".
func GetUserID(c *fiber.Ctx) string {
	if u := GetUser(c); u != nil {
		return u.ID
	}
	return ""
}
