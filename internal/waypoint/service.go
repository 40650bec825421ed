package waypoint

import (
	"context"
	"errors"

	"backend-hikepal/internal/db"
)

var ErrNotFound = errors.New("waypoint not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// SaveAll persists the waypoints of a saved track in order.
func (s *Service) SaveAll(ctx context.Context, trackID string, waypoints []Waypoint) error {
	if s.db == nil {
		return db.ErrUnavailable
	}
	for i, wp := range waypoints {
		_, err := s.db.Exec(ctx, `
			INSERT INTO track_waypoints (id, track_id, seq, location, type, note, image_url, created_at)
			VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography, $6, $7, $8, $9)
		`, wp.ID, trackID, i, wp.Lng, wp.Lat, string(wp.Kind), wp.Note, wp.ImageURL, wp.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ForTrack(ctx context.Context, trackID string) ([]Waypoint, error) {
	if s.db == nil {
		return nil, db.ErrUnavailable
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, track_id, ST_Y(location::geometry), ST_X(location::geometry), type, COALESCE(note,''), COALESCE(image_url,''), created_at
		FROM track_waypoints WHERE track_id=$1
		ORDER BY seq
	`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waypoints []Waypoint
	for rows.Next() {
		var wp Waypoint
		var kind string
		if err := rows.Scan(&wp.ID, &wp.TrackID, &wp.Lat, &wp.Lng, &kind, &wp.Note, &wp.ImageURL, &wp.CreatedAt); err != nil {
			return nil, err
		}
		wp.Kind = Kind(kind)
		waypoints = append(waypoints, wp)
	}
	return waypoints, rows.Err()
}

// AttachPhoto records the uploaded image for a photo waypoint.
func (s *Service) AttachPhoto(ctx context.Context, id, url string) error {
	if s.db == nil {
		return db.ErrUnavailable
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE track_waypoints SET image_url=$2
		WHERE id=$1 AND type='photo'
	`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
