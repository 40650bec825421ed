package waypoint

import "time"

type Kind string

const (
	KindPhoto  Kind = "photo"
	KindMarker Kind = "marker"
)

func (k Kind) Valid() bool {
	return k == KindPhoto || k == KindMarker
}

// Waypoint is pinned to the hiker's position at the moment it was added.
type Waypoint struct {
	ID        string    `json:"id"`
	TrackID   string    `json:"track_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Kind      Kind      `json:"type"`
	Note      string    `json:"note,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
