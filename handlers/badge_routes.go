// handlers/badge_routes.go
package handlers

import (
	"badge-progress-system/catalog"
	"badge-progress-system/models"
	"badge-progress-system/services"
	"badge-progress-system/utils"

	"github.com/gofiber/fiber/v2"
)

type addressParams struct {
	Address string `json:"address" validate:"required,max=64"`
	BadgeID string `json:"badge_id" validate:"omitempty,max=128"`
}

func parseAddressParams(c *fiber.Ctx) (addressParams, error) {
	p := addressParams{
		Address: models.NormalizeAddress(c.Params("address")),
		BadgeID: c.Params("id"),
	}
	return p, utils.ValidateStruct(p)
}

// SetupBadgeRoutes registers the read side: the catalog and per-user progress.
func SetupBadgeRoutes(router fiber.Router, cat catalog.Catalog, progress *services.ProgressService) {
	router.Get("/badges", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"badges": cat.All()})
	})

	router.Get("/badges/:id", func(c *fiber.Ctx) error {
		def, err := cat.Lookup(c.Params("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(def)
	})

	router.Get("/users/:address/badges", func(c *fiber.Ctx) error {
		p, err := parseAddressParams(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		list, err := progress.List(requestContext(c), p.Address)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"user_address": p.Address,
			"badges":       list,
		})
	})

	router.Get("/users/:address/badges/:id", func(c *fiber.Ctx) error {
		p, err := parseAddressParams(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		bp, err := progress.Get(requestContext(c), p.Address, p.BadgeID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(bp)
	})
}
