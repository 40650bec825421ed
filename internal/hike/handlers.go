package hike

import (
	"errors"

	"backend-hikepal/internal/db"
	"backend-hikepal/internal/recorder"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// RecordingStatus looks up the recorder state of a participant's companion
// session for a hike.
type RecordingStatus func(hikeID, participantID string) (recorder.Status, bool)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, recording RecordingStatus) {
	r.Post("/", authMiddleware, requireParticipant, func(c *fiber.Ctx) error {
		var req PlanRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		planned, err := svc.Plan(c.Context(), participant(c), req)
		if err != nil {
			return statusError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(planned)
	})

	r.Post("/quickstart", authMiddleware, requireParticipant, func(c *fiber.Ctx) error {
		planned, err := svc.QuickStart(c.Context(), participant(c))
		if err != nil {
			return statusError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(planned)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		h, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		return c.JSON(h)
	})

	r.Post("/:id/join", authMiddleware, requireParticipant, func(c *fiber.Ctx) error {
		var body struct {
			ShareToken string `json:"share_token"`
		}
		if err := c.BodyParser(&body); err != nil || body.ShareToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "share_token required")
		}
		member, err := svc.Join(c.Context(), c.Params("id"), participant(c), body.ShareToken)
		if err != nil {
			return statusError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(member)
	})

	r.Post("/:id/activate", authMiddleware, requireParticipant, func(c *fiber.Ctx) error {
		h, err := svc.Activate(c.Context(), c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		return c.JSON(h)
	})

	r.Post("/:id/complete", authMiddleware, requireParticipant, func(c *fiber.Ctx) error {
		status := recorder.StatusIdle
		if recording != nil {
			if s, ok := recording(c.Params("id"), participant(c)); ok {
				status = s
			}
		}
		h, err := svc.Complete(c.Context(), c.Params("id"), status)
		if err != nil {
			return statusError(err)
		}
		return c.JSON(h)
	})
}

func participant(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func requireParticipant(c *fiber.Ctx) error {
	if participant(c) == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing participant")
	}
	return c.Next()
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidShareToken):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrRecordingNotClosed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, db.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
