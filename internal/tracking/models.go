package tracking

import "time"

// Location is one uploaded position row of a participant in a hike session.
type Location struct {
	ID            int64     `json:"id"`
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	Lat           float64   `json:"latitude"`
	Lng           float64   `json:"longitude"`
	CapturedAt    time.Time `json:"captured_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrackSummary is the list form of a persisted track.
type TrackSummary struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	Date          time.Time `json:"date"`
	Duration      string    `json:"duration"`
	DistanceM     float64   `json:"distance_m"`
}
