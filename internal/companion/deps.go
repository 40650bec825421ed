package companion

import (
	"context"
	"time"

	"backend-hikepal/internal/advisor"
	"backend-hikepal/internal/hike"
	"backend-hikepal/internal/recorder"
	"backend-hikepal/internal/riskzone"
	"backend-hikepal/internal/stream"
	"backend-hikepal/internal/tracking"

	"go.uber.org/zap"
)

// Hub is the slice of stream.Hub a session uses: the peer subscription and
// outgoing events.
type Hub interface {
	Register(topic string) *stream.Client
	Unregister(client *stream.Client)
	Publish(topic, eventType string, data any) error
}

// HikeStatusFunc reports the lifecycle status of a hike session.
type HikeStatusFunc func(ctx context.Context, hikeID string) (hike.Status, error)

type ZoneLoader interface {
	Load(ctx context.Context) []riskzone.RiskZone
}

type LocationWriter interface {
	InsertLocation(ctx context.Context, loc tracking.Location) (tracking.Location, error)
}

type TrackSaver interface {
	SaveTrack(ctx context.Context, track recorder.Track) error
}

type Advisor interface {
	GenerateAdvice(ctx context.Context, message string, hc advisor.Context) string
}

// Deps are the collaborators shared by every session. Any of them may be nil;
// the matching feature is then skipped.
type Deps struct {
	Hub        Hub
	HikeStatus HikeStatusFunc
	Zones      ZoneLoader
	Locations  LocationWriter
	Tracks     TrackSaver
	Advisor    Advisor
	Log        *zap.Logger
}

type Settings struct {
	UploadInterval     time.Duration
	TeammateStaleAfter time.Duration
	FeedStaleAfter     time.Duration
	RouteName          string
	Simulate           bool
	SimulationStep     time.Duration
	// Tick is the cadence of the elapsed-time counter and of the stale checks.
	Tick time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.UploadInterval <= 0 {
		s.UploadInterval = 10 * time.Second
	}
	if s.SimulationStep <= 0 {
		s.SimulationStep = time.Second
	}
	if s.Tick <= 0 {
		s.Tick = time.Second
	}
	if s.RouteName == "" {
		s.RouteName = "Dragon's Back"
	}
	return s
}
