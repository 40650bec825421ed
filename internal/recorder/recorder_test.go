package recorder

import (
	"fmt"
	"math"
	"testing"
	"time"

	"backend-hikepal/internal/shared/geo"
	"backend-hikepal/internal/waypoint"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRecorder() (*Recorder, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	n := 0
	r := New("session-1", "user-1", WithClock(clock.Now), WithIDs(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	return r, clock
}

var start = geo.Position{Lat: 22.2195, Lng: 114.2405}

func TestRecorderLifecycle(t *testing.T) {
	r, clock := newTestRecorder()
	if r.Status() != StatusIdle {
		t.Fatalf("expected idle")
	}
	if r.Ingest(start) {
		t.Fatalf("ingest while idle must be ignored")
	}
	if !r.Start(start) {
		t.Fatalf("start failed")
	}
	if r.Start(start) {
		t.Fatalf("second start must be ignored")
	}

	r.Ingest(geo.Position{Lat: 22.2205, Lng: 114.2405})
	r.Ingest(geo.Position{Lat: 22.2205, Lng: 114.2405})
	for i := 0; i < 65; i++ {
		clock.Advance(time.Second)
		r.Tick()
	}

	if _, ok := r.Save("early"); ok {
		t.Fatalf("save before stop must be ignored")
	}
	if !r.Stop() {
		t.Fatalf("stop failed")
	}

	track, ok := r.Save("Dragon's Back")
	if !ok {
		t.Fatalf("save failed")
	}
	if track.Duration != "00:01:05" || track.DurationSec != 65 {
		t.Fatalf("unexpected duration %q", track.Duration)
	}
	if len(track.Coordinates) != 3 {
		t.Fatalf("expected 3 coordinates, got %d", len(track.Coordinates))
	}
	want := geo.HaversineM(22.2195, 114.2405, 22.2205, 114.2405)
	if math.Abs(track.DistanceM-want) > 0.001 {
		t.Fatalf("expected distance %v, got %v", want, track.DistanceM)
	}
	if track.Distance != FormatDistance(want) {
		t.Fatalf("unexpected distance label %q", track.Distance)
	}
	if track.SessionID != "session-1" || track.ParticipantID != "user-1" || track.Name != "Dragon's Back" {
		t.Fatalf("unexpected track identity %+v", track)
	}
}

func TestSaveAndDiscardIdempotent(t *testing.T) {
	r, _ := newTestRecorder()
	r.Start(start)
	r.Stop()
	if _, ok := r.Save("a"); !ok {
		t.Fatalf("first save failed")
	}
	if _, ok := r.Save("a"); ok {
		t.Fatalf("second save must not emit a track")
	}
	if r.Discard() {
		t.Fatalf("discard after save must be ignored")
	}

	r2, _ := newTestRecorder()
	r2.Start(start)
	r2.Stop()
	if !r2.Discard() {
		t.Fatalf("discard failed")
	}
	if r2.Discard() {
		t.Fatalf("second discard must be ignored")
	}
	if _, ok := r2.Save("b"); ok {
		t.Fatalf("save after discard must be ignored")
	}
	if !r2.Status().Finished() {
		t.Fatalf("expected finished status")
	}
}

func TestFrozenAfterStop(t *testing.T) {
	r, _ := newTestRecorder()
	r.Start(start)

	prevElapsed, prevLen := int64(0), 1
	for i := 0; i < 10; i++ {
		r.Tick()
		r.Ingest(geo.Position{Lat: start.Lat + float64(i)*0.0001, Lng: start.Lng})
		snap := r.Snapshot()
		if snap.ElapsedSeconds < prevElapsed || snap.PathLength < prevLen {
			t.Fatalf("counters decreased while recording")
		}
		prevElapsed, prevLen = snap.ElapsedSeconds, snap.PathLength
	}

	r.Stop()
	frozen := r.Snapshot()
	r.Tick()
	r.Ingest(start)
	after := r.Snapshot()
	if after.ElapsedSeconds != frozen.ElapsedSeconds || after.PathLength != frozen.PathLength {
		t.Fatalf("recorder mutated after stop")
	}
}

func TestAddWaypointUsesCurrentPosition(t *testing.T) {
	r, _ := newTestRecorder()
	if _, ok := r.AddWaypoint(waypoint.KindMarker, "x"); ok {
		t.Fatalf("waypoint while idle must be ignored")
	}
	r.Start(start)
	latest := geo.Position{Lat: 22.23, Lng: 114.25}
	r.Ingest(latest)

	wp, ok := r.AddWaypoint(waypoint.KindPhoto, "view")
	if !ok {
		t.Fatalf("add waypoint failed")
	}
	if wp.Lat != latest.Lat || wp.Lng != latest.Lng {
		t.Fatalf("waypoint not pinned to current position")
	}
	if _, ok := r.AddWaypoint(waypoint.Kind("flag"), ""); ok {
		t.Fatalf("unknown kind must be rejected")
	}

	r.Stop()
	track, _ := r.Save("t")
	if len(track.Waypoints) != 1 || track.Waypoints[0].Note != "view" {
		t.Fatalf("expected waypoint in track")
	}
}

func TestCheckStale(t *testing.T) {
	r, clock := newTestRecorder()
	if r.CheckStale(time.Second) {
		t.Fatalf("idle recorder cannot be stale")
	}
	r.Start(start)

	clock.Advance(20 * time.Second)
	if r.CheckStale(30 * time.Second) {
		t.Fatalf("not stale yet")
	}
	clock.Advance(11 * time.Second)
	if !r.CheckStale(30 * time.Second) {
		t.Fatalf("expected stale transition")
	}
	if r.CheckStale(30 * time.Second) {
		t.Fatalf("stale transition reported twice")
	}
	if !r.Snapshot().Stale {
		t.Fatalf("expected stale snapshot")
	}

	r.Ingest(start)
	if r.Snapshot().Stale {
		t.Fatalf("fresh fix should clear stale")
	}
	if r.CheckStale(0) {
		t.Fatalf("zero threshold disables watchdog")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{
		0:     "00:00:00",
		59:    "00:00:59",
		3600:  "01:00:00",
		3725:  "01:02:05",
		-5:    "00:00:00",
		86399: "23:59:59",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTrackIsIndependentOfRecorder(t *testing.T) {
	r, _ := newTestRecorder()
	r.Start(start)
	r.Stop()
	track, _ := r.Save("t")
	track.Coordinates[0].Lat = 0
	if r.Snapshot().Current.Lat != start.Lat {
		t.Fatalf("track shares path storage with recorder")
	}
}
