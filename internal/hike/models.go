package hike

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("hike not found")
	ErrInvalidTransition  = errors.New("invalid hike status transition")
	ErrInvalidShareToken  = errors.New("invalid share token")
	ErrRecordingNotClosed = errors.New("recording must be saved or discarded first")
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusPlanning   Status = "planning"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
)

var transitions = map[Status][]Status{
	StatusNotStarted: {StatusPlanning},
	StatusPlanning:   {StatusActive},
	StatusActive:     {StatusCompleted},
}

// CanTransition reports whether a hike may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Hike struct {
	ID              string    `json:"id"`
	ParticipantID   string    `json:"participant_id"`
	Status          Status    `json:"status"`
	PlannedDuration string    `json:"planned_duration,omitempty"`
	CompanionCount  int       `json:"companion_count"`
	ExperienceLevel string    `json:"experience_level,omitempty"`
	InitialMood     string    `json:"initial_mood,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type PlanRequest struct {
	PlannedDuration string `json:"planned_duration" validate:"max=64"`
	CompanionCount  int    `json:"companion_count" validate:"gte=0,lte=100"`
	ExperienceLevel string `json:"experience_level" validate:"omitempty,oneof=first_time occasional advanced"`
	InitialMood     string `json:"initial_mood" validate:"max=280"`
}

// Planned is returned once on creation; the share token is not stored in
// plain text and cannot be read back.
type Planned struct {
	Hike       Hike   `json:"hike"`
	ShareToken string `json:"share_token"`
}

type Member struct {
	HikeID        string    `json:"hike_id"`
	ParticipantID string    `json:"participant_id"`
	JoinedAt      time.Time `json:"joined_at"`
}
