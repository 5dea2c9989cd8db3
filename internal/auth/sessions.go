package auth

import (
	"sync"
	"time"
)

// DefaultSessionTTL is the idle timeout after which a session is invalid.
const DefaultSessionTTL = 3600 * time.Second

// SessionRegistry maps authenticated user ids to their last-activity time.
// Sessions live only in process memory and all vanish on restart. The
// timeout window is sliding: every successful liveness check renews it.
type SessionRegistry struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time

	ttl time.Duration
	now func() time.Time
}

// SessionOption configures a SessionRegistry.
type SessionOption func(*SessionRegistry)

// WithSessionTTL overrides the idle timeout.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(r *SessionRegistry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(r *SessionRegistry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewSessionRegistry constructs a registry with the default one-hour idle timeout.
func NewSessionRegistry(opts ...SessionOption) *SessionRegistry {
	r := &SessionRegistry{
		lastSeen: make(map[int64]time.Time),
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Check reports whether userID has a live session. An absent or expired
// entry is purged and reported false; a live entry has its timestamp
// renewed to now before reporting true.
func (r *SessionRegistry) Check(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	last, ok := r.lastSeen[userID]
	if !ok || now.Sub(last) > r.ttl {
		delete(r.lastSeen, userID)
		return false
	}
	r.lastSeen[userID] = now
	return true
}

// Record starts (or restarts) a session for userID. Called only after
// credential verification succeeds.
func (r *SessionRegistry) Record(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[userID] = r.now()
}

// Remove discards all session state for userID.
func (r *SessionRegistry) Remove(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastSeen, userID)
}

// Active returns the number of registered sessions, expired entries included
// until their next access purges them.
func (r *SessionRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lastSeen)
}
