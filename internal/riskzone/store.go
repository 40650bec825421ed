package riskzone

import (
	"context"
	"math"

	"backend-hikepal/internal/db"

	"github.com/google/uuid"
)

type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

// ReadAll returns every zone. Zones with a missing or non-positive radius get
// defaultRadius so that radius > 0 always holds downstream. A zone without
// coordinates can never trigger and is left out; the rest still load.
func (s *Store) ReadAll(ctx context.Context, defaultRadius float64) ([]RiskZone, error) {
	if s.db == nil {
		return nil, db.ErrUnavailable
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, latitude, longitude, COALESCE(radius, 0), COALESCE(type, ''), COALESCE(message, '')
		FROM risk_zones
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []RiskZone
	for rows.Next() {
		var z RiskZone
		var lat, lng *float64
		if err := rows.Scan(&z.ID, &lat, &lng, &z.RadiusM, &z.Category, &z.Message); err != nil {
			return nil, err
		}
		if lat == nil || lng == nil {
			continue
		}
		z.Lat, z.Lng = *lat, *lng
		zones = append(zones, normalize(z, defaultRadius))
	}
	return zones, rows.Err()
}

func (s *Store) Create(ctx context.Context, zone RiskZone, defaultRadius float64) (RiskZone, error) {
	if s.db == nil {
		return RiskZone{}, db.ErrUnavailable
	}
	zone = normalize(zone, defaultRadius)
	zone.ID = uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO risk_zones (id, latitude, longitude, radius, type, message)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, zone.ID, zone.Lat, zone.Lng, zone.RadiusM, zone.Category, zone.Message)
	if err != nil {
		return RiskZone{}, err
	}
	return zone, nil
}

func normalize(z RiskZone, defaultRadius float64) RiskZone {
	if defaultRadius <= 0 {
		defaultRadius = DefaultRadiusM
	}
	if math.IsNaN(z.RadiusM) || z.RadiusM <= 0 {
		z.RadiusM = defaultRadius
	}
	return z
}
