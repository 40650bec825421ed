// Package companion runs live companion sessions: one per hiker per hike.
// A session records the hiker's path, raises risk zone alerts, uploads its
// position at a throttled rate and keeps a roster of teammates.
package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"backend-hikepal/internal/advisor"
	"backend-hikepal/internal/geofence"
	"backend-hikepal/internal/hike"
	"backend-hikepal/internal/logger"
	"backend-hikepal/internal/position"
	"backend-hikepal/internal/recorder"
	"backend-hikepal/internal/riskzone"
	"backend-hikepal/internal/roster"
	"backend-hikepal/internal/shared/geo"
	"backend-hikepal/internal/stream"
	"backend-hikepal/internal/tracking"
	"backend-hikepal/internal/uplink"
	"backend-hikepal/internal/waypoint"

	"go.uber.org/zap"
)

// Session serializes every state change behind mu: HTTP handlers, the fix
// consumer, the ticker and the peer consumer take turns.
type Session struct {
	sessionID     string
	participantID string
	settings      Settings
	deps          Deps
	log           *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	rec       *recorder.Recorder
	zones     []riskzone.RiskZone
	fence     geofence.State
	alerts    []geofence.Alert
	upload    uplink.State
	roster    *roster.Roster
	feed      *position.Feed
	lastKnown *geo.Position

	// recording teardown: cancelling stopRec ends the subscription and the
	// ticker together, recDone closes when both are gone.
	stopRec context.CancelFunc
	recDone chan struct{}

	peer     *stream.Client
	peerDone chan struct{}
	uploads  sync.WaitGroup
}

func newSession(sessionID, participantID string, zones []riskzone.RiskZone, settings Settings, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		sessionID:     sessionID,
		participantID: participantID,
		settings:      settings,
		deps:          deps,
		log: logger.OrNop(deps.Log).Named("companion").With(
			zap.String("session_id", sessionID), zap.String("participant_id", participantID)),
		ctx:      ctx,
		cancel:   cancel,
		rec:      recorder.New(sessionID, participantID),
		zones:    zones,
		fence:    geofence.State{},
		roster:   roster.New(participantID),
		feed:     position.NewFeed(),
		peerDone: make(chan struct{}),
	}
	if deps.Hub != nil {
		s.peer = deps.Hub.Register(stream.SessionTopic(sessionID))
	}
	go s.consumePeers()
	return s
}

func (s *Session) SessionID() string     { return s.sessionID }
func (s *Session) ParticipantID() string { return s.participantID }

// Start begins a recording at start, or at the last known position when start
// is nil. A finished recording is replaced by a fresh one. When a hike status
// lookup is configured the hike must be active.
func (s *Session) Start(ctx context.Context, start *geo.Position) (recorder.Snapshot, error) {
	if s.deps.HikeStatus != nil {
		status, err := s.deps.HikeStatus(ctx, s.sessionID)
		if err != nil {
			return recorder.Snapshot{}, err
		}
		if status != hike.StatusActive {
			return recorder.Snapshot{}, fmt.Errorf("%w: hike is %s", ErrHikeNotActive, status)
		}
	}
	s.reloadZonesIfEmpty()

	s.mu.Lock()
	snap, alerts, err := s.startLocked(start)
	s.mu.Unlock()

	s.publishAlerts(alerts)
	return snap, err
}

func (s *Session) startLocked(start *geo.Position) (recorder.Snapshot, []geofence.Alert, error) {
	if s.closed {
		return s.rec.Snapshot(), nil, ErrClosed
	}
	if s.rec.Status().Finished() {
		s.rec = recorder.New(s.sessionID, s.participantID)
	}

	from := DefaultStart
	switch {
	case start != nil && start.Valid():
		from = *start
	case s.lastKnown != nil:
		from = *s.lastKnown
	}
	if from.CapturedAt.IsZero() {
		from.CapturedAt = time.Now()
	}
	if !s.rec.Start(from) {
		return s.rec.Snapshot(), nil, ErrAlreadyRecording
	}

	s.upload.Reset()
	s.fence = geofence.State{}
	s.lastKnown = &from

	var src position.Source = s.feed
	if s.settings.Simulate {
		src = position.NewSimulator(from, s.settings.SimulationStep)
	}
	ctx, cancel := context.WithCancel(s.ctx)
	fixes, err := src.Subscribe(ctx, position.Options{HighAccuracy: true})
	if err != nil {
		// keep recording on the last known position; elapsed time still runs
		s.log.Warn("position subscription failed", zap.Error(err))
	}
	s.stopRec = cancel
	s.recDone = make(chan struct{})
	go s.record(ctx, fixes, s.recDone)

	alerts := s.afterFixLocked(from)
	s.log.Info("recording started", zap.Float64("lat", from.Lat), zap.Float64("lng", from.Lng))
	return s.rec.Snapshot(), alerts, nil
}

// Push hands a device fix to the session. While recording it goes through
// the position feed; otherwise it only updates the last known position.
func (s *Session) Push(fix position.Fix) bool {
	if fix.Err == nil && !fix.Position.Valid() {
		return false
	}
	if fix.Err == nil && fix.Position.CapturedAt.IsZero() {
		fix.Position.CapturedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.rec.Status() == recorder.StatusRecording {
		// the simulator owns the path and the current position
		if s.settings.Simulate {
			return false
		}
		return s.feed.Push(fix)
	}
	if fix.Err != nil {
		s.log.Warn("position feed error", zap.Error(fix.Err))
		return false
	}
	pos := fix.Position
	s.lastKnown = &pos
	return true
}

func (s *Session) AddWaypoint(kind waypoint.Kind, note string) (waypoint.Waypoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.AddWaypoint(kind, note)
}

// Stop ends the recording and waits until the feed and ticker are released.
func (s *Session) Stop() (recorder.Snapshot, bool) {
	s.mu.Lock()
	ok := s.rec.Stop()
	done := s.endRecordingLocked()
	snap := s.rec.Snapshot()
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	if ok {
		s.log.Info("recording stopped",
			zap.Int64("elapsed_seconds", snap.ElapsedSeconds), zap.Int("path_length", snap.PathLength))
	}
	return snap, ok
}

// Save finalizes a stopped recording and persists the track. ok is false
// when the recording was not stopped or was already finalized.
func (s *Session) Save(ctx context.Context, name string) (recorder.Track, bool, error) {
	if name == "" {
		name = defaultTrackName
	}
	s.mu.Lock()
	track, ok := s.rec.Save(name)
	s.mu.Unlock()
	if !ok {
		return recorder.Track{}, false, nil
	}

	s.log.Info("track saved", zap.String("track_id", track.ID), zap.String("distance", track.Distance))
	if s.deps.Tracks == nil {
		return track, true, nil
	}
	if err := s.deps.Tracks.SaveTrack(ctx, track); err != nil {
		s.log.Error("track persistence failed", zap.String("track_id", track.ID), zap.Error(err))
		return track, true, err
	}
	return track, true, nil
}

func (s *Session) Discard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Discard()
}

func (s *Session) RecorderStatus() recorder.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Status()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:     s.sessionID,
		ParticipantID: s.participantID,
		Simulated:     s.settings.Simulate,
		Zones:         len(s.zones),
		Recording:     s.rec.Snapshot(),
		Teammates:     s.roster.List(),
		Alerts:        append([]geofence.Alert(nil), s.alerts...),
	}
	if s.lastKnown != nil {
		pos := *s.lastKnown
		v.Position = &pos
	}
	return v
}

func (s *Session) Teammates() []roster.Teammate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.List()
}

// Alerts are returned latest first.
func (s *Session) Alerts() []geofence.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]geofence.Alert(nil), s.alerts...)
}

// Chat asks the advisor with the hiker's current situation.
func (s *Session) Chat(ctx context.Context, message string) string {
	s.mu.Lock()
	hc := advisor.Context{
		Location:  s.positionLocked(),
		RouteName: s.settings.RouteName,
		Teammates: s.roster.Names(),
	}
	s.mu.Unlock()

	if s.deps.Advisor == nil {
		return advisor.FallbackOffline
	}
	return s.deps.Advisor.GenerateAdvice(ctx, message, hc)
}

// Team relays a message to everyone following the session.
func (s *Session) Team(text string) (TeamMessage, error) {
	msg := TeamMessage{SessionID: s.sessionID, From: s.participantID, Text: text, At: time.Now()}
	if s.deps.Hub == nil {
		return msg, nil
	}
	return msg, s.deps.Hub.Publish(stream.SessionTopic(s.sessionID), stream.EventTeam, msg)
}

// SOS broadcasts the hiker's position to the team and keeps it as an alert.
func (s *Session) SOS() (SOSMessage, error) {
	now := time.Now()
	s.mu.Lock()
	pos := s.positionLocked()
	msg := SOSMessage{
		SessionID: s.sessionID,
		From:      s.participantID,
		Lat:       round5(pos.Lat),
		Lng:       round5(pos.Lng),
		At:        now,
	}
	msg.Text = fmt.Sprintf("SOS! Emergency at %.5f, %.5f.", pos.Lat, pos.Lng)
	s.pushAlertLocked(geofence.Alert{
		Zone: riskzone.RiskZone{
			ID:       categorySOS,
			Lat:      msg.Lat,
			Lng:      msg.Lng,
			Category: categorySOS,
			Message:  msg.Text,
		},
		Position: pos,
		At:       now,
	})
	s.mu.Unlock()

	s.log.Warn("sos raised", zap.Float64("lat", msg.Lat), zap.Float64("lng", msg.Lng))
	if s.deps.Hub == nil {
		return msg, nil
	}
	return msg, s.deps.Hub.Publish(stream.SessionTopic(s.sessionID), stream.EventSOS, msg)
}

// Close tears the session down and waits for its goroutines. It is safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	done := s.endRecordingLocked()
	s.cancel()
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	<-s.peerDone
	if s.peer != nil {
		s.deps.Hub.Unregister(s.peer)
	}
	s.uploads.Wait()
	s.feed.Close()
}

func (s *Session) endRecordingLocked() chan struct{} {
	if s.stopRec == nil {
		return nil
	}
	s.stopRec()
	s.stopRec = nil
	done := s.recDone
	s.recDone = nil
	return done
}

func (s *Session) record(ctx context.Context, fixes <-chan position.Fix, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.settings.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-fixes:
			if !ok {
				fixes = nil
				continue
			}
			s.onFix(ctx, fix)
		case <-ticker.C:
			s.onTick(ctx)
		}
	}
}

// onFix and onTick drop work that raced with the teardown of their recording.
func (s *Session) onFix(ctx context.Context, fix position.Fix) {
	s.mu.Lock()
	alerts := s.ingestLocked(ctx, fix)
	s.mu.Unlock()

	s.publishAlerts(alerts)
}

func (s *Session) ingestLocked(ctx context.Context, fix position.Fix) []geofence.Alert {
	if ctx.Err() != nil {
		return nil
	}
	if fix.Err != nil {
		s.log.Warn("position feed error", zap.Error(fix.Err))
		return nil
	}
	pos := fix.Position
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = time.Now()
	}
	if !s.rec.Ingest(pos) {
		return nil
	}
	s.lastKnown = &pos
	return s.afterFixLocked(pos)
}

func (s *Session) onTick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.rec.Tick()
	if s.rec.CheckStale(s.settings.FeedStaleAfter) {
		s.log.Warn("position feed stale", zap.Duration("after", s.settings.FeedStaleAfter))
	}
}

// afterFixLocked runs geofencing and the throttled upload for an accepted fix.
// It returns the new alerts; the caller publishes them once mu is released.
func (s *Session) afterFixLocked(pos geo.Position) []geofence.Alert {
	triggered, next := geofence.Evaluate(pos, s.zones, s.fence)
	s.fence = next
	var alerts []geofence.Alert
	for _, z := range triggered {
		alert := geofence.Alert{Zone: z, Position: pos, At: time.Now()}
		s.pushAlertLocked(alert)
		alerts = append(alerts, alert)
		s.log.Info("risk zone entered", zap.String("zone_id", z.ID), zap.String("category", z.Category))
	}

	now := time.Now()
	if s.deps.Locations == nil || !uplink.ShouldUpload(now, &s.upload, s.settings.UploadInterval) {
		return alerts
	}
	// a failed write is not rolled back; the next interval is the retry
	uplink.RecordUpload(now, &s.upload)
	loc := tracking.Location{
		SessionID:     s.sessionID,
		ParticipantID: s.participantID,
		Lat:           pos.Lat,
		Lng:           pos.Lng,
		CapturedAt:    pos.CapturedAt,
	}
	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		ctx, cancel := context.WithTimeout(s.ctx, uploadTimeout)
		defer cancel()
		if _, err := s.deps.Locations.InsertLocation(ctx, loc); err != nil {
			s.log.Warn("location upload failed", zap.Error(err))
		}
	}()
	return alerts
}

func (s *Session) publishAlerts(alerts []geofence.Alert) {
	if s.deps.Hub == nil {
		return
	}
	topic := stream.AlertTopic(s.sessionID, s.participantID)
	for _, alert := range alerts {
		if err := s.deps.Hub.Publish(topic, stream.EventAlert, alert); err != nil {
			s.log.Warn("alert publish failed", zap.Error(err))
		}
	}
}

func (s *Session) pushAlertLocked(alert geofence.Alert) {
	s.alerts = append([]geofence.Alert{alert}, s.alerts...)
	if len(s.alerts) > maxAlerts {
		s.alerts = s.alerts[:maxAlerts]
	}
}

func (s *Session) positionLocked() geo.Position {
	if s.lastKnown != nil {
		return *s.lastKnown
	}
	return DefaultStart
}

func (s *Session) consumePeers() {
	defer close(s.peerDone)
	ticker := time.NewTicker(s.settings.Tick)
	defer ticker.Stop()

	var events <-chan []byte
	if s.peer != nil {
		events = s.peer.Send
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			s.applyPeer(payload)
		case <-ticker.C:
			s.mu.Lock()
			expired := s.roster.Expire(time.Now(), s.settings.TeammateStaleAfter)
			s.mu.Unlock()
			if len(expired) > 0 {
				s.log.Info("teammates inactive", zap.Strings("participant_ids", expired))
			}
		}
	}
}

func (s *Session) applyPeer(payload []byte) {
	ev, err := stream.DecodeEvent(payload)
	if err != nil || ev.Type != stream.EventLocation {
		return
	}
	var loc peerLocation
	if err := json.Unmarshal(ev.Data, &loc); err != nil {
		s.log.Debug("dropping malformed location event", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster.Apply(loc.ParticipantID, loc.Lat, loc.Lng, time.Now())
}

func (s *Session) reloadZonesIfEmpty() {
	s.mu.Lock()
	empty := len(s.zones) == 0
	s.mu.Unlock()
	if !empty || s.deps.Zones == nil {
		return
	}
	zones := s.deps.Zones.Load(s.ctx)
	s.mu.Lock()
	if len(s.zones) == 0 {
		s.zones = zones
	}
	s.mu.Unlock()
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
