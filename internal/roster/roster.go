// Package roster folds other participants' position inserts into a live list
// of teammates for one session.
package roster

import (
	"time"

	"backend-hikepal/internal/shared/geo"

	"github.com/samber/lo"
)

const PlaceholderName = "New Teammate"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Teammate struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"name"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Status      Status    `json:"status"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Roster is not safe for concurrent use; the owning session serializes access.
type Roster struct {
	localID string
	members map[string]*Teammate
	order   []string
}

func New(localParticipantID string) *Roster {
	return &Roster{
		localID: localParticipantID,
		members: map[string]*Teammate{},
	}
}

// Apply upserts a position insert. Events from the local participant and
// events with unusable coordinates are ignored.
func (r *Roster) Apply(participantID string, lat, lng float64, at time.Time) bool {
	if participantID == "" || participantID == r.localID {
		return false
	}
	if !geo.ValidCoordinates(lat, lng) {
		return false
	}

	if tm, ok := r.members[participantID]; ok {
		tm.Lat, tm.Lng = lat, lng
		tm.Status = StatusActive
		if at.After(tm.LastSeenAt) {
			tm.LastSeenAt = at
		}
		return true
	}

	r.members[participantID] = &Teammate{
		ID:          participantID,
		DisplayName: PlaceholderName,
		Lat:         lat,
		Lng:         lng,
		Status:      StatusActive,
		LastSeenAt:  at,
	}
	r.order = append(r.order, participantID)
	return true
}

// Expire marks teammates silent for longer than after as inactive and returns
// their ids. A non-positive after disables expiry.
func (r *Roster) Expire(now time.Time, after time.Duration) []string {
	if after <= 0 {
		return nil
	}
	var expired []string
	for _, id := range r.order {
		tm := r.members[id]
		if tm.Status == StatusActive && now.Sub(tm.LastSeenAt) > after {
			tm.Status = StatusInactive
			expired = append(expired, id)
		}
	}
	return expired
}

// List returns teammates in first-seen order.
func (r *Roster) List() []Teammate {
	return lo.Map(r.order, func(id string, _ int) Teammate {
		return *r.members[id]
	})
}

func (r *Roster) Names() []string {
	return lo.Map(r.List(), func(tm Teammate, _ int) string {
		return tm.DisplayName
	})
}

func (r *Roster) Len() int {
	return len(r.order)
}
