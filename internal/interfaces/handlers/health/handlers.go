package health

import (
	"time"

	healthsvc "motorhub-backend/internal/application/health"

	"github.com/gofiber/fiber/v2"
)

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Backend   string
	Store     healthsvc.Pinger
	StartedAt time.Time
}

// JSON returns health data as JSON. The status code is 503 when the store is
// unreachable so load balancers can act on it.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := healthsvc.CollectHealth(c.UserContext(), h.Backend, h.Store, h.StartedAt)
	code := fiber.StatusOK
	if result.Status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"service":      "motorhub-api",
		"status":       result.Status,
		"runtime":      result.Runtime,
		"dependencies": result.Dependencies,
	})
}
