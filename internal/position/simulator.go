package position

import (
	"context"
	"math/rand/v2"
	"time"

	"backend-hikepal/internal/shared/geo"
)

const simulationStepDeg = 0.0001

// Simulator walks away from a start position, drifting north-east, one fix
// per step. Each subscription owns its own ticker.
type Simulator struct {
	start geo.Position
	step  time.Duration
	rand  func() float64
	now   func() time.Time
}

type SimulatorOption func(*Simulator)

func WithRand(r func() float64) SimulatorOption {
	return func(s *Simulator) {
		s.rand = r
	}
}

func WithSimulatorClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		s.now = now
	}
}

func NewSimulator(start geo.Position, step time.Duration, opts ...SimulatorOption) *Simulator {
	if step <= 0 {
		step = time.Second
	}
	s := &Simulator{start: start, step: step, rand: rand.Float64, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Subscribe(ctx context.Context, _ Options) (<-chan Fix, error) {
	if !s.start.Valid() {
		return nil, geo.ErrInvalidCoordinates
	}
	ch := make(chan Fix, 1)
	go s.run(ctx, ch)
	return ch, nil
}

func (s *Simulator) run(ctx context.Context, ch chan<- Fix) {
	defer close(ch)
	ticker := time.NewTicker(s.step)
	defer ticker.Stop()

	cur := s.start
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur = s.next(cur)
			select {
			case ch <- Fix{Position: cur}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Simulator) next(cur geo.Position) geo.Position {
	return geo.Position{
		Lat:        cur.Lat + (s.rand()-0.3)*simulationStepDeg,
		Lng:        cur.Lng + (s.rand()-0.4)*simulationStepDeg,
		CapturedAt: s.now(),
	}
}
