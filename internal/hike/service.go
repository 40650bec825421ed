package hike

import (
	"context"
	"errors"

	"backend-hikepal/internal/db"
	"backend-hikepal/internal/recorder"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var tokenCost = bcrypt.DefaultCost

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Plan stores hike metadata in the planning state.
func (s *Service) Plan(ctx context.Context, participantID string, req PlanRequest) (Planned, error) {
	return s.create(ctx, Hike{
		ParticipantID:   participantID,
		Status:          StatusPlanning,
		PlannedDuration: req.PlannedDuration,
		CompanionCount:  req.CompanionCount,
		ExperienceLevel: req.ExperienceLevel,
		InitialMood:     req.InitialMood,
	})
}

// QuickStart skips planning metadata and creates an active hike.
func (s *Service) QuickStart(ctx context.Context, participantID string) (Planned, error) {
	return s.create(ctx, Hike{ParticipantID: participantID, Status: StatusActive})
}

func (s *Service) create(ctx context.Context, h Hike) (Planned, error) {
	if s.db == nil {
		return Planned{}, db.ErrUnavailable
	}
	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), tokenCost)
	if err != nil {
		return Planned{}, err
	}

	h.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO hike_sessions (id, participant_id, status, planned_duration, companion_count, experience_level, initial_mood, share_token_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at
	`, h.ID, h.ParticipantID, string(h.Status), nullable(h.PlannedDuration), h.CompanionCount,
		nullable(h.ExperienceLevel), nullable(h.InitialMood), string(hash))
	if err := row.Scan(&h.CreatedAt, &h.UpdatedAt); err != nil {
		return Planned{}, err
	}
	return Planned{Hike: h, ShareToken: token}, nil
}

func (s *Service) Get(ctx context.Context, id string) (Hike, error) {
	if s.db == nil {
		return Hike{}, db.ErrUnavailable
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, participant_id, status, COALESCE(planned_duration,''), COALESCE(companion_count,0),
		       COALESCE(experience_level,''), COALESCE(initial_mood,''), created_at, updated_at
		FROM hike_sessions WHERE id=$1
	`, id)
	var h Hike
	var status string
	err := row.Scan(&h.ID, &h.ParticipantID, &status, &h.PlannedDuration, &h.CompanionCount,
		&h.ExperienceLevel, &h.InitialMood, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Hike{}, ErrNotFound
	}
	if err != nil {
		return Hike{}, err
	}
	h.Status = Status(status)
	return h, nil
}

// Status is the lifecycle status of a hike, used to gate live recording.
func (s *Service) Status(ctx context.Context, id string) (Status, error) {
	h, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return h.Status, nil
}

// Join adds a participant to a hike when the share token matches.
func (s *Service) Join(ctx context.Context, id, participantID, token string) (Member, error) {
	if s.db == nil {
		return Member{}, db.ErrUnavailable
	}
	var hash string
	err := s.db.QueryRow(ctx, `SELECT share_token_hash FROM hike_sessions WHERE id=$1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	if err != nil {
		return Member{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
		return Member{}, ErrInvalidShareToken
	}

	member := Member{HikeID: id, ParticipantID: participantID}
	row := s.db.QueryRow(ctx, `
		INSERT INTO hike_members (hike_id, participant_id)
		VALUES ($1,$2)
		ON CONFLICT (hike_id, participant_id) DO UPDATE SET participant_id=EXCLUDED.participant_id
		RETURNING joined_at
	`, id, participantID)
	if err := row.Scan(&member.JoinedAt); err != nil {
		return Member{}, err
	}
	return member, nil
}

// Activate moves a planned hike to active.
func (s *Service) Activate(ctx context.Context, id string) (Hike, error) {
	return s.transition(ctx, id, StatusActive)
}

// Complete closes an active hike. The hiker's recording must already be
// saved or discarded.
func (s *Service) Complete(ctx context.Context, id string, recording recorder.Status) (Hike, error) {
	if !recording.Finished() {
		return Hike{}, ErrRecordingNotClosed
	}
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (Hike, error) {
	h, err := s.Get(ctx, id)
	if err != nil {
		return Hike{}, err
	}
	if !CanTransition(h.Status, to) {
		return Hike{}, ErrInvalidTransition
	}

	row := s.db.QueryRow(ctx, `
		UPDATE hike_sessions SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3
		RETURNING updated_at
	`, id, string(to), string(h.Status))
	err = row.Scan(&h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// status changed underneath us
		return Hike{}, ErrInvalidTransition
	}
	if err != nil {
		return Hike{}, err
	}
	h.Status = to
	return h, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
