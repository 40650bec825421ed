// Package position provides the location feeds a companion session records
// from: fixes pushed by the device and a simulated walk.
package position

import (
	"context"
	"errors"

	"backend-hikepal/internal/shared/geo"
)

var ErrClosed = errors.New("position source closed")

// Fix is one delivery from a source. Err is set when the device reported a
// failure instead of a position.
type Fix struct {
	Position geo.Position
	Err      error
}

// Options are hints for the source; sources may ignore them.
type Options struct {
	HighAccuracy bool
}

// Source delivers fixes until ctx is cancelled, then closes the channel.
type Source interface {
	Subscribe(ctx context.Context, opts Options) (<-chan Fix, error)
}
