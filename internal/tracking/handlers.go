package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/sessions/:id/locations", func(c *fiber.Ctx) error {
		locations, err := svc.Locations(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(locations)
	})
}

func RegisterTrackRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		participantID := c.Query("participant_id")
		if participantID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "participant_id required")
		}
		tracks, err := svc.Tracks(c.Context(), participantID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(tracks)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		track, err := svc.Track(c.Context(), c.Params("id"))
		if errors.Is(err, pgx.ErrNoRows) {
			return fiber.NewError(fiber.StatusNotFound, "track not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(track)
	})
}
