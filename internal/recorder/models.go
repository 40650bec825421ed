package recorder

import (
	"fmt"
	"time"

	"backend-hikepal/internal/shared/geo"
	"backend-hikepal/internal/waypoint"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusStopped   Status = "stopped"
	StatusSaved     Status = "saved"
	StatusDiscarded Status = "discarded"
)

// Finished reports whether the recorder reached a terminal state.
func (s Status) Finished() bool {
	return s == StatusSaved || s == StatusDiscarded
}

// Track is the immutable artifact produced by Save.
type Track struct {
	ID            string              `json:"id"`
	SessionID     string              `json:"session_id"`
	ParticipantID string              `json:"participant_id"`
	Name          string              `json:"name"`
	Date          time.Time           `json:"date"`
	Duration      string              `json:"duration"`
	DurationSec   int64               `json:"duration_sec"`
	DistanceM     float64             `json:"distance_m"`
	Distance      string              `json:"distance"`
	Coordinates   []geo.Position      `json:"coordinates"`
	Waypoints     []waypoint.Waypoint `json:"waypoints"`
}

// Snapshot is a read-only view of a recorder.
type Snapshot struct {
	Status         Status              `json:"status"`
	Stale          bool                `json:"stale"`
	StartedAt      time.Time           `json:"started_at"`
	ElapsedSeconds int64               `json:"elapsed_seconds"`
	Elapsed        string              `json:"elapsed"`
	PathLength     int                 `json:"path_length"`
	DistanceM      float64             `json:"distance_m"`
	Current        *geo.Position       `json:"current,omitempty"`
	Waypoints      []waypoint.Waypoint `json:"waypoints"`
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatDistance renders meters as kilometers with two decimals.
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}
