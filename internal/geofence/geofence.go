// Package geofence decides which risk zones a position has newly entered.
package geofence

import (
	"math"
	"time"

	"backend-hikepal/internal/riskzone"
	"backend-hikepal/internal/shared/geo"
)

// State maps zone id to whether the hiker is currently inside it.
type State map[string]bool

type Alert struct {
	Zone     riskzone.RiskZone `json:"zone"`
	Position geo.Position      `json:"position"`
	At       time.Time         `json:"at"`
}

// Evaluate is edge-triggered: a zone is returned only on the transition from
// outside to inside. Leaving a zone clears its flag so re-entry triggers
// again. Inside means distance < radius. The input state is not modified.
func Evaluate(pos geo.Position, zones []riskzone.RiskZone, state State) ([]riskzone.RiskZone, State) {
	next := make(State, len(state))
	for id, inside := range state {
		next[id] = inside
	}
	if !pos.Valid() {
		return nil, next
	}

	var triggered []riskzone.RiskZone
	for _, z := range zones {
		inside := contains(z, pos)
		if inside && !next[z.ID] {
			triggered = append(triggered, z)
		}
		if inside {
			next[z.ID] = true
		} else {
			delete(next, z.ID)
		}
	}
	return triggered, next
}

func contains(z riskzone.RiskZone, pos geo.Position) bool {
	if !geo.ValidCoordinates(z.Lat, z.Lng) || math.IsNaN(z.RadiusM) || z.RadiusM <= 0 {
		return false
	}
	return geo.HaversineM(pos.Lat, pos.Lng, z.Lat, z.Lng) < z.RadiusM
}
