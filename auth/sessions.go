package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// session tracks the most recent access token issued to a user. Presenting
// an older token, or any token after logout, fails validation.
type session struct {
	fingerprint string
	lastActive  time.Time
}

// SessionRegistry is the in-process map of active sessions keyed by user id.
// Issuing a new token pair replaces the previous session; inactive sessions
// are reaped periodically.
type SessionRegistry struct {
	mu         sync.Mutex
	sessions   map[int64]*session
	inactivity time.Duration
}

// NewSessionRegistry creates a session registry with the given inactivity
// threshold.
func NewSessionRegistry(inactivity time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions:   make(map[int64]*session),
		inactivity: inactivity,
	}
}

// fingerprintOf hashes a token so raw tokens are never held in memory
func fingerprintOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Bind records a freshly issued access token as the user's active session,
// replacing any previous one.
func (r *SessionRegistry) Bind(userID int64, accessToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = &session{
		fingerprint: fingerprintOf(accessToken),
		lastActive:  time.Now().UTC(),
	}
}

// Validate checks that the token is the user's current session token and
// refreshes its activity timestamp.
func (r *SessionRegistry) Validate(userID int64, accessToken string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok || s.fingerprint != fingerprintOf(accessToken) {
		return false
	}
	s.lastActive = time.Now().UTC()
	return true
}

// Active reports whether the user currently holds a session. Refresh tokens
// are only honored while one exists, so logout also revokes them.
func (r *SessionRegistry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	return ok
}

// Remove drops the user's session
func (r *SessionRegistry) Remove(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Len returns the number of active sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// reap removes sessions idle beyond the inactivity threshold and returns how
// many were dropped.
func (r *SessionRegistry) reap(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	reaped := 0
	for userID, s := range r.sessions {
		if now.Sub(s.lastActive) > r.inactivity {
			delete(r.sessions, userID)
			reaped++
		}
	}
	return reaped
}

// Run reaps expired sessions periodically until the context is cancelled
func (r *SessionRegistry) Run(ctx context.Context) {
	interval := r.inactivity / 4
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if reaped := r.reap(now.UTC()); reaped > 0 {
				logrus.WithField("sessions", reaped).Debug("Reaped inactive sessions")
			}
		}
	}
}
