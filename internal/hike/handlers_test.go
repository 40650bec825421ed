package hike

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-hikepal/internal/recorder"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id != "" {
			c.Locals("user_id", id)
		}
		return c.Next()
	}
}

func TestHikeHandlersPlanAndGet(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO hike_sessions`).
		WithArgs(pgxmock.AnyArg(), "user-1", "planning", pgxmock.AnyArg(), 2, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	expectHike(mock, "hike-1", StatusPlanning)
	mock.ExpectQuery(`SELECT id, participant_id, status`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	app := fiber.New()
	RegisterRoutes(app.Group("/hikes"), NewService(mock), asUser("user-1"), nil)

	body, _ := json.Marshal(PlanRequest{CompanionCount: 2, ExperienceLevel: "advanced"})
	req := httptest.NewRequest(http.MethodPost, "/hikes/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("plan status: %v %d", err, resp.StatusCode)
	}
	var planned Planned
	if err := json.NewDecoder(resp.Body).Decode(&planned); err != nil || planned.ShareToken == "" {
		t.Fatalf("expected share token: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/hikes/hike-1", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/hikes/missing", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}
}

func TestHikeHandlersValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/hikes"), NewService(nil), asUser("user-1"), nil)

	req := httptest.NewRequest(http.MethodPost, "/hikes/", bytes.NewReader([]byte(`{"experience_level":"expert"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/hikes/hike-1/join", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/hikes/quickstart", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected unavailable, got %d", resp.StatusCode)
	}
}

func TestHikeHandlersRequireParticipant(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/hikes"), NewService(nil), asUser(""), nil)

	req := httptest.NewRequest(http.MethodPost, "/hikes/quickstart", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

func TestHikeHandlersComplete(t *testing.T) {
	mock := newMock(t)
	expectHike(mock, "hike-1", StatusActive)
	mock.ExpectQuery(`UPDATE hike_sessions SET status`).
		WithArgs("hike-1", "completed", "active").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	status := recorder.StatusRecording
	lookup := func(hikeID, participantID string) (recorder.Status, bool) {
		if hikeID != "hike-1" || participantID != "user-1" {
			return "", false
		}
		return status, true
	}

	app := fiber.New()
	RegisterRoutes(app.Group("/hikes"), NewService(mock), asUser("user-1"), lookup)

	req := httptest.NewRequest(http.MethodPost, "/hikes/hike-1/complete", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict while recording, got %d", resp.StatusCode)
	}

	status = recorder.StatusSaved
	req = httptest.NewRequest(http.MethodPost, "/hikes/hike-1/complete", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.StatusCode)
	}
}
