package auth

import (
	"errors"
	"sync"
	"time"
)

// ErrStaleSession is returned by Save when the session was deleted, rotated
// or saved by another request since it was loaded.
var ErrStaleSession = errors.New("session changed since it was loaded")

// sweepInterval is how many saves pass between scans for expired sessions.
const sweepInterval = 64

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string
	UserID    uint
	Flashes   []string
	ExpiresAt time.Time

	// version is zero for a session that has never been stored.
	version uint64
}

func (s *Session) empty() bool {
	return s.UserID == 0 && len(s.Flashes) == 0
}

func (s *Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionStore maps session ids to sessions. Save only succeeds for a new
// session or one that is unchanged since Get returned it.
type SessionStore interface {
	Get(id string) (*Session, bool)
	Save(s *Session) error
	Delete(id string)
}

// MemorySessionStore keeps sessions in process memory. Expired entries are
// dropped when they are looked up and by a periodic sweep on Save.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	saves    int
	now      func() time.Time
}

// NewMemorySessionStore creates an empty store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Get returns a copy of the session, or false when it is unknown or expired
func (m *MemorySessionStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if s.expired(m.now()) {
		m.Delete(id)
		return nil, false
	}

	s.Flashes = append([]string(nil), s.Flashes...)
	return &s, true
}

// Save stores a copy of s under s.ID and advances its version.
func (m *MemorySessionStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if ok != (s.version != 0) || (ok && stored.version != s.version) {
		return ErrStaleSession
	}

	cp := *s
	cp.Flashes = append([]string(nil), s.Flashes...)
	cp.version = s.version + 1
	m.sessions[s.ID] = cp
	s.version = cp.version

	m.saves++
	if m.saves%sweepInterval == 0 {
		m.sweep()
	}
	return nil
}

// sweep drops expired sessions. The caller holds m.mu.
func (m *MemorySessionStore) sweep() {
	now := m.now()
	for id, s := range m.sessions {
		if s.expired(now) {
			delete(m.sessions, id)
		}
	}
}

// Delete removes a session
func (m *MemorySessionStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
