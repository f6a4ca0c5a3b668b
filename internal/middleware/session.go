package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionConfig controls the client session cookie.
type SessionConfig struct {
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName = "motorhub.sid"
	clientIDLocal     = "client_id"
	sessionMaxAge     = 30 * 24 * time.Hour
)

// Session gives every client an opaque id carried in the motorhub.sid cookie.
// The id scopes the identity service's session pointer; it is issued on the
// first request that arrives without a valid one.
func Session(cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := c.Cookies(SessionCookieName)
		if _, err := uuid.Parse(clientID); err != nil {
			clientID = uuid.NewString()
			cookie := SessionCookieConfig(cfg)
			cookie.Value = clientID
			c.Cookie(&cookie)
		}
		c.Locals(clientIDLocal, clientID)
		return c.Next()
	}
}

// GetClientID returns the client id assigned by Session.
func GetClientID(c *fiber.Ctx) string {
	id, _ := c.Locals(clientIDLocal).(string)
	return id
}

// SessionCookieConfig returns the cookie options used for motorhub.sid.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}
	return fiber.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction || cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
}
