package hike

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-hikepal/internal/db"
	"backend-hikepal/internal/recorder"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

var hikeColumns = []string{"id", "participant_id", "status", "planned_duration", "companion_count", "experience_level", "initial_mood", "created_at", "updated_at"}

func init() {
	tokenCost = bcrypt.MinCost
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectHike(mock pgxmock.PgxPoolIface, id string, status Status) {
	mock.ExpectQuery(`SELECT id, participant_id, status`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(hikeColumns).
			AddRow(id, "user-1", string(status), "3h", 2, "occasional", "excited", time.Now(), time.Now()))
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusNotStarted, StatusPlanning, true},
		{StatusPlanning, StatusActive, true},
		{StatusActive, StatusCompleted, true},
		{StatusPlanning, StatusCompleted, false},
		{StatusCompleted, StatusActive, false},
		{StatusNotStarted, StatusActive, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v", tc.from, tc.to, tc.ok)
		}
	}
}

func TestPlanStoresHashedToken(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO hike_sessions`).
		WithArgs(pgxmock.AnyArg(), "user-1", "planning", pgxmock.AnyArg(), 3, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	planned, err := NewService(mock).Plan(context.Background(), "user-1", PlanRequest{
		PlannedDuration: "4h", CompanionCount: 3, ExperienceLevel: "first_time", InitialMood: "calm",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if planned.ShareToken == "" || planned.Hike.Status != StatusPlanning || planned.Hike.ID == "" {
		t.Fatalf("unexpected plan %+v", planned)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuickStartIsActive(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO hike_sessions`).
		WithArgs(pgxmock.AnyArg(), "user-1", "active", pgxmock.AnyArg(), 0, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	planned, err := NewService(mock).QuickStart(context.Background(), "user-1")
	if err != nil || planned.Hike.Status != StatusActive {
		t.Fatalf("quickstart: %v %+v", err, planned)
	}
}

func TestJoinVerifiesShareToken(t *testing.T) {
	mock := newMock(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("token-1"), bcrypt.MinCost)

	mock.ExpectQuery(`SELECT share_token_hash FROM hike_sessions`).
		WithArgs("hike-1").
		WillReturnRows(pgxmock.NewRows([]string{"share_token_hash"}).AddRow(string(hash)))
	mock.ExpectQuery(`INSERT INTO hike_members`).
		WithArgs("hike-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"joined_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`SELECT share_token_hash FROM hike_sessions`).
		WithArgs("hike-1").
		WillReturnRows(pgxmock.NewRows([]string{"share_token_hash"}).AddRow(string(hash)))
	mock.ExpectQuery(`SELECT share_token_hash FROM hike_sessions`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock)
	member, err := svc.Join(context.Background(), "hike-1", "user-2", "token-1")
	if err != nil || member.ParticipantID != "user-2" {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.Join(context.Background(), "hike-1", "user-3", "wrong"); !errors.Is(err, ErrInvalidShareToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := svc.Join(context.Background(), "missing", "user-3", "token-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActivateAndComplete(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	expectHike(mock, "hike-1", StatusPlanning)
	mock.ExpectQuery(`UPDATE hike_sessions SET status`).
		WithArgs("hike-1", "active", "planning").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	h, err := svc.Activate(context.Background(), "hike-1")
	if err != nil || h.Status != StatusActive {
		t.Fatalf("activate: %v %+v", err, h)
	}

	if _, err := svc.Complete(context.Background(), "hike-1", recorder.StatusStopped); !errors.Is(err, ErrRecordingNotClosed) {
		t.Fatalf("expected recording not closed, got %v", err)
	}

	expectHike(mock, "hike-1", StatusActive)
	mock.ExpectQuery(`UPDATE hike_sessions SET status`).
		WithArgs("hike-1", "completed", "active").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	h, err = svc.Complete(context.Background(), "hike-1", recorder.StatusDiscarded)
	if err != nil || h.Status != StatusCompleted {
		t.Fatalf("complete: %v %+v", err, h)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatus(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	expectHike(mock, "hike-1", StatusPlanning)
	status, err := svc.Status(context.Background(), "hike-1")
	if err != nil || status != StatusPlanning {
		t.Fatalf("unexpected status %q %v", status, err)
	}

	mock.ExpectQuery(`SELECT id, participant_id, status`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := svc.Status(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActivateRejectsInvalidTransition(t *testing.T) {
	mock := newMock(t)
	expectHike(mock, "hike-1", StatusCompleted)

	if _, err := NewService(mock).Activate(context.Background(), "hike-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestTransitionLostRace(t *testing.T) {
	mock := newMock(t)
	expectHike(mock, "hike-1", StatusPlanning)
	mock.ExpectQuery(`UPDATE hike_sessions SET status`).
		WithArgs("hike-1", "active", "planning").
		WillReturnError(pgx.ErrNoRows)

	if _, err := NewService(mock).Activate(context.Background(), "hike-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestServiceWithoutDatabase(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Plan(context.Background(), "user-1", PlanRequest{}); !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "hike-1"); !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.Join(context.Background(), "hike-1", "user-1", "t"); !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
