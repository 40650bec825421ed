package companion

import (
	"context"
	"errors"
	"sync"

	"backend-hikepal/internal/logger"
	"backend-hikepal/internal/recorder"
	"backend-hikepal/internal/riskzone"

	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("companion session not found")
	ErrClosed           = errors.New("companion session closed")
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrHikeNotActive    = errors.New("hike is not active")
)

// Manager owns the live sessions of this node, keyed by hike session and
// participant.
type Manager struct {
	settings Settings
	deps     Deps
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	// recorder status of sessions that were left, for hike completion
	finished map[string]recorder.Status
}

func NewManager(settings Settings, deps Deps) *Manager {
	return &Manager{
		settings: settings.withDefaults(),
		deps:     deps,
		log:      logger.OrNop(deps.Log).Named("companion"),
		sessions: map[string]*Session{},
		finished: map[string]recorder.Status{},
	}
}

func key(sessionID, participantID string) string {
	return sessionID + "/" + participantID
}

// Enter opens companion mode for a participant, loading the risk zones once.
// Entering an open session returns it unchanged.
func (m *Manager) Enter(ctx context.Context, sessionID, participantID string) *Session {
	k := key(sessionID, participantID)
	m.mu.Lock()
	if s, ok := m.sessions[k]; ok {
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	zones := m.loadZones(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[k]; ok {
		return s
	}
	s := newSession(sessionID, participantID, zones, m.settings, m.deps)
	m.sessions[k] = s
	delete(m.finished, k)
	m.log.Info("companion entered",
		zap.String("session_id", sessionID), zap.String("participant_id", participantID), zap.Int("zones", len(zones)))
	return s
}

func (m *Manager) Get(sessionID, participantID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key(sessionID, participantID)]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Leave closes the session and releases its subscriptions.
func (m *Manager) Leave(sessionID, participantID string) error {
	k := key(sessionID, participantID)
	m.mu.Lock()
	s, ok := m.sessions[k]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	// the session stays listed while it closes so its status never goes missing
	s.Close()
	status := s.RecorderStatus()
	m.mu.Lock()
	m.finished[k] = status
	if m.sessions[k] == s {
		delete(m.sessions, k)
	}
	m.mu.Unlock()
	return nil
}

// RecordingStatus reports the recorder state of a live or left session.
func (m *Manager) RecordingStatus(sessionID, participantID string) (recorder.Status, bool) {
	k := key(sessionID, participantID)
	m.mu.Lock()
	s, live := m.sessions[k]
	status, left := m.finished[k]
	m.mu.Unlock()
	if live {
		return s.RecorderStatus(), true
	}
	return status, left
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for k, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, k)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) loadZones(ctx context.Context) []riskzone.RiskZone {
	if m.deps.Zones == nil {
		return nil
	}
	return m.deps.Zones.Load(ctx)
}
