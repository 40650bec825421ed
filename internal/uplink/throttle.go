// Package uplink gates outbound location writes to at most one per interval.
package uplink

import "time"

const DefaultInterval = 10 * time.Second

// State is owned by one session. The zero value means "never uploaded".
type State struct {
	LastUploadAt time.Time
}

// ShouldUpload reports whether a write may be issued at now. The first call
// on a fresh State always succeeds.
func ShouldUpload(now time.Time, state *State, interval time.Duration) bool {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if state.LastUploadAt.IsZero() {
		return true
	}
	return now.Sub(state.LastUploadAt) >= interval
}

// RecordUpload marks a write as issued. A failed write is not rolled back.
func RecordUpload(now time.Time, state *State) {
	if now.Before(state.LastUploadAt) {
		return
	}
	state.LastUploadAt = now
}

// Reset is used when a new recording starts.
func (s *State) Reset() {
	s.LastUploadAt = time.Time{}
}
