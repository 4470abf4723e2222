package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

// Pinger is satisfied by database.Storage
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HandleCheckHealth reports liveness together with database reachability
func HandleCheckHealth(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			log.Errorw("health check failed", "error", err)
			return response.ServiceUnavailable(c, "Database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
