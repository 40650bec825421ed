package waypoint

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:id/photo", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			ImageURL string `json:"image_url"`
		}
		if err := c.BodyParser(&body); err != nil || body.ImageURL == "" {
			return fiber.NewError(fiber.StatusBadRequest, "image_url required")
		}
		err := svc.AttachPhoto(c.Context(), c.Params("id"), body.ImageURL)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
