// handlers/admin_routes.go
package handlers

import (
	"errors"

	"badge-progress-system/logging"
	"badge-progress-system/middleware"
	"badge-progress-system/services"
	"badge-progress-system/store"
	"badge-progress-system/wire"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes registers manual ingestion under /s/admin. Callers need
// the admin role forwarded by the Gateway.
func SetupAdminRoutes(router fiber.Router, progress *services.ProgressService, backfill *services.BackfillService, adminRole string) {
	admin := router.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole(adminRole))

	admin.Post("/progress", func(c *fiber.Ctx) error {
		rec, err := wire.Decode(c.Body())
		if err != nil {
			return errorResponse(c, err)
		}

		res, err := progress.Apply(requestContext(c), rec)
		if errors.Is(err, store.ErrDuplicateEvent) {
			return c.JSON(fiber.Map{"duplicate": true, "event_id": rec.EventID})
		}
		if err != nil {
			return errorResponse(c, err)
		}

		logging.Ctx(requestContext(c)).Info().
			Str("admin", middleware.UserID(c)).
			Str("key", rec.Key().String()).
			Bool("changed", res.Changed).
			Msg("🛠️ admin progress update")
		return c.JSON(res)
	})

	admin.Post("/backfill", func(c *fiber.Ctx) error {
		items, err := wire.ReadRecords(c.Body(), "request")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		report, err := backfill.Import(requestContext(c), items)
		if err != nil {
			logging.Ctx(requestContext(c)).Error().Err(err).Msg("❌ admin backfill stopped")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "backfill stopped before all records were applied",
				"report": report,
			})
		}
		return c.JSON(report)
	})
}
