// Package session provides cookie-backed in-memory sessions. State lives in
// the process; restarting the server logs everyone out, which is acceptable
// for a single-instance deployment.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const CookieName = "tracker_session"

// Session is the per-login state. Display preferences and the optional SMTP
// sender credentials live here, not in the database.
type Session struct {
	ID        string
	Email     string
	Name      string
	Theme     string
	Currency  string
	ConvRate  float64
	SMTPEmail string
	SMTPPass  string
	expiresAt time.Time
}

// Store holds active sessions keyed by ID with TTL-based expiry. A
// background sweep removes expired entries so abandoned sessions do not
// accumulate.
type Store struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	ttl          time.Duration
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go s.startCleanup()
	return s
}

// Create starts a session for a logged-in user with default preferences.
func (s *Store) Create(email, name string) *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Email:    email,
		Name:     name,
		Theme:    "light",
		Currency: "INR",
		ConvRate: 1.0,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.expiresAt = time.Now().Add(s.ttl)
	s.sessions[sess.ID] = sess
	snapshot := *sess
	return &snapshot
}

// Get returns a snapshot of the session for id, extending its expiry on each
// hit. Expired sessions are removed and reported as absent. Handlers read the
// snapshot without further locking; all writes go through Update, so the
// stored session is only ever touched under the store lock.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.expiresAt = time.Now().Add(s.ttl)
	snapshot := *sess
	return &snapshot, true
}

// Update applies fn to the session under the store lock, so preference
// writes from concurrent requests never interleave.
func (s *Store) Update(id string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || time.Now().After(sess.expiresAt) {
		return false
	}
	fn(sess)
	return true
}

// Delete ends the session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// FromRequest resolves the session from the request cookie.
func (s *Store) FromRequest(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	return s.Get(cookie.Value)
}

// SetCookie writes the session cookie on the response.
func (s *Store) SetCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
}

// ClearCookie expires the session cookie on the response.
func (s *Store) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// startCleanup runs periodic cleanup to remove expired sessions.
func (s *Store) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// Stop shuts down the cleanup goroutine.
func (s *Store) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
	})
}
