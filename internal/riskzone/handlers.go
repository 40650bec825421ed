package riskzone

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

func RegisterRoutes(r fiber.Router, store *Store, catalog *Catalog, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(catalog.Load(c.Context()))
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req RiskZone
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		zone, err := store.Create(c.Context(), req, catalog.defaultRadius)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		catalog.Invalidate()
		return c.Status(fiber.StatusCreated).JSON(zone)
	})

	r.Post("/reload", authMiddleware, func(c *fiber.Ctx) error {
		catalog.Invalidate()
		zones := catalog.Load(c.Context())
		return c.JSON(fiber.Map{"count": len(zones)})
	})
}
