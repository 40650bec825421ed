package companion

import (
	"time"

	"backend-hikepal/internal/geofence"
	"backend-hikepal/internal/recorder"
	"backend-hikepal/internal/roster"
	"backend-hikepal/internal/shared/geo"
)

const (
	maxAlerts        = 50
	defaultTrackName = "My Hike"
	categorySOS      = "sos"
	uploadTimeout    = 10 * time.Second
)

// DefaultStart is used when recording starts before any fix arrived.
var DefaultStart = geo.Position{Lat: 22.2285, Lng: 114.2425}

type TeamMessage struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

type SOSMessage struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// peerLocation is the part of a location insert event the roster needs.
type peerLocation struct {
	ParticipantID string  `json:"participant_id"`
	Lat           float64 `json:"latitude"`
	Lng           float64 `json:"longitude"`
}

// View is what a client sees of its companion session.
type View struct {
	SessionID     string            `json:"session_id"`
	ParticipantID string            `json:"participant_id"`
	Simulated     bool              `json:"simulated"`
	Position      *geo.Position     `json:"position,omitempty"`
	Zones         int               `json:"zones"`
	Recording     recorder.Snapshot `json:"recording"`
	Teammates     []roster.Teammate `json:"teammates"`
	Alerts        []geofence.Alert  `json:"alerts"`
}
