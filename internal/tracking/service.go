package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"backend-hikepal/internal/db"
	"backend-hikepal/internal/recorder"
	"backend-hikepal/internal/shared/geo"
	"backend-hikepal/internal/stream"
	"backend-hikepal/internal/waypoint"
)

type Service struct {
	db        db.Querier
	hub       *stream.Hub
	waypoints *waypoint.Service
}

func NewService(db db.Querier, hub *stream.Hub, waypoints *waypoint.Service) *Service {
	if waypoints == nil {
		waypoints = waypoint.NewService(db)
	}
	return &Service{db: db, hub: hub, waypoints: waypoints}
}

// InsertLocation stores an uploaded position and fans the inserted row out on
// the session topic, which is what peers subscribe to.
func (s *Service) InsertLocation(ctx context.Context, loc Location) (Location, error) {
	if s.db == nil {
		return Location{}, db.ErrUnavailable
	}
	if loc.CapturedAt.IsZero() {
		loc.CapturedAt = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO locations (session_id, participant_id, latitude, longitude, captured_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, loc.SessionID, loc.ParticipantID, loc.Lat, loc.Lng, loc.CapturedAt)
	if err := row.Scan(&loc.ID, &loc.CreatedAt); err != nil {
		return Location{}, err
	}

	if s.hub != nil {
		_ = s.hub.Publish(stream.SessionTopic(loc.SessionID), stream.EventLocation, loc)
	}
	return loc, nil
}

func (s *Service) Locations(ctx context.Context, sessionID string) ([]Location, error) {
	if s.db == nil {
		return nil, db.ErrUnavailable
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, participant_id, latitude, longitude, captured_at, created_at
		FROM locations WHERE session_id=$1
		ORDER BY captured_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.SessionID, &l.ParticipantID, &l.Lat, &l.Lng, &l.CapturedAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// SaveTrack persists a finished track and its waypoints.
func (s *Service) SaveTrack(ctx context.Context, track recorder.Track) error {
	if s.db == nil {
		return db.ErrUnavailable
	}
	path, err := json.Marshal(track.Coordinates)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO tracks (id, session_id, participant_id, name, recorded_at, duration, duration_sec, distance_m, path, route)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, ST_GeogFromText($10))
	`, track.ID, track.SessionID, track.ParticipantID, track.Name, track.Date, track.Duration, track.DurationSec,
		track.DistanceM, path, lineWKT(track.Coordinates))
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}

	if len(track.Waypoints) > 0 {
		if err := s.waypoints.SaveAll(ctx, track.ID, track.Waypoints); err != nil {
			return fmt.Errorf("insert waypoints: %w", err)
		}
	}
	return nil
}

func (s *Service) Track(ctx context.Context, id string) (recorder.Track, error) {
	if s.db == nil {
		return recorder.Track{}, db.ErrUnavailable
	}
	var track recorder.Track
	var path []byte
	row := s.db.QueryRow(ctx, `
		SELECT id, session_id, participant_id, name, recorded_at, duration, duration_sec, distance_m, path
		FROM tracks WHERE id=$1
	`, id)
	if err := row.Scan(&track.ID, &track.SessionID, &track.ParticipantID, &track.Name, &track.Date,
		&track.Duration, &track.DurationSec, &track.DistanceM, &path); err != nil {
		return recorder.Track{}, err
	}
	if len(path) > 0 {
		if err := json.Unmarshal(path, &track.Coordinates); err != nil {
			return recorder.Track{}, err
		}
	}
	track.Distance = recorder.FormatDistance(track.DistanceM)

	waypoints, err := s.waypoints.ForTrack(ctx, id)
	if err != nil {
		return recorder.Track{}, err
	}
	track.Waypoints = waypoints
	return track, nil
}

func (s *Service) Tracks(ctx context.Context, participantID string) ([]TrackSummary, error) {
	if s.db == nil {
		return nil, db.ErrUnavailable
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, participant_id, name, recorded_at, duration, distance_m
		FROM tracks WHERE participant_id=$1
		ORDER BY recorded_at DESC
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []TrackSummary
	for rows.Next() {
		var t TrackSummary
		if err := rows.Scan(&t.ID, &t.SessionID, &t.ParticipantID, &t.Name, &t.Date, &t.Duration, &t.DistanceM); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// lineWKT returns nil for paths too short to form a line.
func lineWKT(path []geo.Position) *string {
	var pts []string
	for _, p := range path {
		if p.Valid() {
			pts = append(pts, fmt.Sprintf("%f %f", p.Lng, p.Lat))
		}
	}
	if len(pts) < 2 {
		return nil
	}
	wkt := "SRID=4326;LINESTRING(" + strings.Join(pts, ",") + ")"
	return &wkt
}
