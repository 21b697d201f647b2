package session

import (
	"sort"
	"sync"
	"time"
)

// Manager indexes live sessions by (auth_key_id, session_id).
type Manager struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
	layer    int32
}

// NewManager creates a manager whose new sessions start at defaultLayer.
func NewManager(defaultLayer int32) *Manager {
	return &Manager{sessions: make(map[Key]*Session), layer: defaultLayer}
}

// Attach returns the session for key on connection connID, creating it if
// needed. A session with the same key on another connection is replaced;
// it is returned as replaced so the caller can tear it down.
func (m *Manager) Attach(key Key, connID string, sink Sink) (s *Session, created bool, replaced *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[key]; ok {
		if cur.ConnID == connID {
			return cur, false, nil
		}
		replaced = cur
	}
	s = newSession(key, connID, sink, m.layer)
	m.sessions[key] = s
	return s, true, replaced
}

func (m *Manager) Get(key Key) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Remove deletes s if it is still the session registered under its key.
func (m *Manager) Remove(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.Key]; ok && cur == s {
		delete(m.sessions, s.Key)
		return true
	}
	return false
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Info is a snapshot of a session for status reporting.
type Info struct {
	AuthKeyID int64     `json:"auth_key_id"`
	SessionID int64     `json:"session_id"`
	ConnID    string    `json:"conn_id"`
	UserID    int64     `json:"user_id"`
	Layer     int32     `json:"layer"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns a snapshot of all sessions ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Info{
			AuthKeyID: s.AuthKeyID,
			SessionID: s.SessionID,
			ConnID:    s.ConnID,
			UserID:    s.Authorization().UserID,
			Layer:     s.Layer(),
			CreatedAt: s.CreatedAt,
		})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
