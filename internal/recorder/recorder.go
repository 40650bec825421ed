// Package recorder accumulates one hiker's path, waypoints and elapsed time
// while recording and turns them into a Track.
//
// Lifecycle: idle -> recording -> stopped -> saved | discarded. Calls that do
// not fit the current state are ignored and report ok=false.
package recorder

import (
	"time"

	"backend-hikepal/internal/shared/geo"
	"backend-hikepal/internal/waypoint"

	"github.com/google/uuid"
)

// Recorder is not safe for concurrent use; the owning session serializes access.
type Recorder struct {
	sessionID     string
	participantID string

	status    Status
	path      []geo.Position
	waypoints []waypoint.Waypoint
	startedAt time.Time
	elapsed   int64
	lastFixAt time.Time
	stale     bool

	now   func() time.Time
	newID func() string
}

type Option func(*Recorder)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func WithIDs(newID func() string) Option {
	return func(r *Recorder) {
		r.newID = newID
	}
}

func New(sessionID, participantID string, opts ...Option) *Recorder {
	r := &Recorder{
		sessionID:     sessionID,
		participantID: participantID,
		status:        StatusIdle,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Status() Status {
	return r.status
}

// Start begins recording with the path seeded by the current position.
func (r *Recorder) Start(current geo.Position) bool {
	if r.status != StatusIdle {
		return false
	}
	now := r.now()
	if current.CapturedAt.IsZero() {
		current.CapturedAt = now
	}
	r.status = StatusRecording
	r.path = []geo.Position{current}
	r.waypoints = nil
	r.startedAt = now
	r.elapsed = 0
	r.lastFixAt = now
	r.stale = false
	return true
}

// Ingest appends a fix. Duplicates are kept.
func (r *Recorder) Ingest(pos geo.Position) bool {
	if r.status != StatusRecording {
		return false
	}
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = r.now()
	}
	r.path = append(r.path, pos)
	r.lastFixAt = r.now()
	r.stale = false
	return true
}

// Tick advances the elapsed-time counter by one second.
func (r *Recorder) Tick() bool {
	if r.status != StatusRecording {
		return false
	}
	r.elapsed++
	return true
}

// CheckStale flags the feed as stale when no fix arrived within after. It
// returns true only on the transition into the stale state.
func (r *Recorder) CheckStale(after time.Duration) bool {
	if r.status != StatusRecording || after <= 0 || r.stale {
		return false
	}
	if r.now().Sub(r.lastFixAt) > after {
		r.stale = true
		return true
	}
	return false
}

// Current is the latest tracked position.
func (r *Recorder) Current() (geo.Position, bool) {
	if len(r.path) == 0 {
		return geo.Position{}, false
	}
	return r.path[len(r.path)-1], true
}

// AddWaypoint pins a waypoint to the current position.
func (r *Recorder) AddWaypoint(kind waypoint.Kind, note string) (waypoint.Waypoint, bool) {
	if r.status != StatusRecording || !kind.Valid() {
		return waypoint.Waypoint{}, false
	}
	cur, ok := r.Current()
	if !ok {
		return waypoint.Waypoint{}, false
	}
	wp := waypoint.Waypoint{
		ID:        r.newID(),
		Lat:       cur.Lat,
		Lng:       cur.Lng,
		Kind:      kind,
		Note:      note,
		CreatedAt: r.now(),
	}
	r.waypoints = append(r.waypoints, wp)
	return wp, true
}

func (r *Recorder) Stop() bool {
	if r.status != StatusRecording {
		return false
	}
	r.status = StatusStopped
	r.stale = false
	return true
}

// Save finalizes a stopped recording. Distance is the haversine sum over
// consecutive path points.
func (r *Recorder) Save(name string) (Track, bool) {
	if r.status != StatusStopped {
		return Track{}, false
	}
	r.status = StatusSaved

	distance := geo.PathLengthM(r.path)
	coords := make([]geo.Position, len(r.path))
	copy(coords, r.path)
	wps := make([]waypoint.Waypoint, len(r.waypoints))
	copy(wps, r.waypoints)

	return Track{
		ID:            r.newID(),
		SessionID:     r.sessionID,
		ParticipantID: r.participantID,
		Name:          name,
		Date:          r.now(),
		Duration:      FormatDuration(r.elapsed),
		DurationSec:   r.elapsed,
		DistanceM:     distance,
		Distance:      FormatDistance(distance),
		Coordinates:   coords,
		Waypoints:     wps,
	}, true
}

func (r *Recorder) Discard() bool {
	if r.status != StatusStopped {
		return false
	}
	r.status = StatusDiscarded
	return true
}

func (r *Recorder) Snapshot() Snapshot {
	snap := Snapshot{
		Status:         r.status,
		Stale:          r.stale,
		StartedAt:      r.startedAt,
		ElapsedSeconds: r.elapsed,
		Elapsed:        FormatDuration(r.elapsed),
		PathLength:     len(r.path),
		DistanceM:      geo.PathLengthM(r.path),
		Waypoints:      append([]waypoint.Waypoint(nil), r.waypoints...),
	}
	if cur, ok := r.Current(); ok {
		snap.Current = &cur
	}
	return snap
}
