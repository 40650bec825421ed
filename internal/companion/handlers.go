package companion

import (
	"errors"
	"time"

	"backend-hikepal/internal/db"
	"backend-hikepal/internal/hike"
	"backend-hikepal/internal/position"
	"backend-hikepal/internal/shared/geo"
	"backend-hikepal/internal/waypoint"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type startRequest struct {
	Lat *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng *float64 `json:"lng" validate:"omitempty,longitude"`
}

type positionRequest struct {
	Lat        *float64  `json:"lat" validate:"required,latitude"`
	Lng        *float64  `json:"lng" validate:"required,longitude"`
	CapturedAt time.Time `json:"captured_at"`
	Error      string    `json:"error"`
}

type waypointRequest struct {
	Kind string `json:"type" validate:"required,oneof=photo marker"`
	Note string `json:"note" validate:"max=500"`
}

// RegisterRoutes mounts companion mode. The bearer's user is the local
// participant of every session it touches.
func RegisterRoutes(r fiber.Router, m *Manager, authMiddleware fiber.Handler) {
	route := func(method, path string, h fiber.Handler) {
		r.Add(method, "/:sessionID"+path, authMiddleware, requireParticipant, h)
	}

	route(fiber.MethodPost, "/enter", func(c *fiber.Ctx) error {
		s := m.Enter(c.Context(), c.Params("sessionID"), participant(c))
		return c.JSON(s.View())
	})

	route(fiber.MethodDelete, "", func(c *fiber.Ctx) error {
		if err := m.Leave(c.Params("sessionID"), participant(c)); err != nil {
			return statusError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	route(fiber.MethodGet, "", withSession(m, func(c *fiber.Ctx, s *Session) error {
		return c.JSON(s.View())
	}))

	route(fiber.MethodPost, "/start", withSession(m, func(c *fiber.Ctx, s *Session) error {
		var req startRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			if err := validate.Struct(req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		var start *geo.Position
		if req.Lat != nil && req.Lng != nil {
			start = &geo.Position{Lat: *req.Lat, Lng: *req.Lng}
		}
		snap, err := s.Start(c.Context(), start)
		if err != nil {
			return statusError(err)
		}
		return c.JSON(snap)
	}))

	route(fiber.MethodPost, "/positions", withSession(m, func(c *fiber.Ctx, s *Session) error {
		var req positionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var fix position.Fix
		if req.Error != "" {
			fix = position.Fix{Err: errors.New(req.Error)}
		} else {
			if err := validate.Struct(req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			fix = position.Fix{Position: geo.Position{Lat: *req.Lat, Lng: *req.Lng, CapturedAt: req.CapturedAt}}
		}
		accepted := s.Push(fix)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": accepted})
	}))

	route(fiber.MethodPost, "/waypoints", withSession(m, func(c *fiber.Ctx, s *Session) error {
		var req waypointRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		wp, ok := s.AddWaypoint(waypoint.Kind(req.Kind), req.Note)
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "not recording")
		}
		return c.Status(fiber.StatusCreated).JSON(wp)
	}))

	route(fiber.MethodPost, "/stop", withSession(m, func(c *fiber.Ctx, s *Session) error {
		snap, ok := s.Stop()
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "not recording")
		}
		return c.JSON(snap)
	}))

	route(fiber.MethodPost, "/save", withSession(m, func(c *fiber.Ctx, s *Session) error {
		var req struct {
			Name string `json:"name"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		track, ok, err := s.Save(c.Context(), req.Name)
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "recording must be stopped before saving")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(track)
	}))

	route(fiber.MethodPost, "/discard", withSession(m, func(c *fiber.Ctx, s *Session) error {
		if !s.Discard() {
			return fiber.NewError(fiber.StatusConflict, "recording must be stopped before discarding")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	route(fiber.MethodGet, "/teammates", withSession(m, func(c *fiber.Ctx, s *Session) error {
		return c.JSON(s.Teammates())
	}))

	route(fiber.MethodGet, "/alerts", withSession(m, func(c *fiber.Ctx, s *Session) error {
		return c.JSON(s.Alerts())
	}))

	route(fiber.MethodPost, "/chat", withSession(m, func(c *fiber.Ctx, s *Session) error {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.BodyParser(&req); err != nil || req.Message == "" {
			return fiber.NewError(fiber.StatusBadRequest, "message required")
		}
		return c.JSON(fiber.Map{"reply": s.Chat(c.Context(), req.Message)})
	}))

	route(fiber.MethodPost, "/team", withSession(m, func(c *fiber.Ctx, s *Session) error {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&req); err != nil || req.Text == "" {
			return fiber.NewError(fiber.StatusBadRequest, "text required")
		}
		msg, err := s.Team(req.Text)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}))

	route(fiber.MethodPost, "/sos", withSession(m, func(c *fiber.Ctx, s *Session) error {
		msg, err := s.SOS()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}))
}

func withSession(m *Manager, fn func(*fiber.Ctx, *Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := m.Get(c.Params("sessionID"), participant(c))
		if err != nil {
			return statusError(err)
		}
		return fn(c, s)
	}
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
	case errors.Is(err, ErrNotFound), errors.Is(err, hike.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyRecording), errors.Is(err, ErrHikeNotActive), errors.Is(err, ErrClosed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, db.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
