package auth

import (
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts is the number of consecutive failures before a
	// username is locked out.
	DefaultMaxAttempts = 5
	// DefaultLockout is how long a locked username stays locked.
	DefaultLockout = 300 * time.Second
)

type attemptRecord struct {
	attempts    int
	lastAttempt time.Time
	lockedUntil time.Time
}

// Throttle tracks failed login attempts per username and enforces a
// time-based lockout. State is process-local and vanishes on restart.
// Usernames are independent; there is no cross-username budget.
type Throttle struct {
	mu      sync.Mutex
	records map[string]*attemptRecord

	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithThrottleLimits overrides the attempt threshold and lockout duration.
func WithThrottleLimits(maxAttempts int, lockout time.Duration) ThrottleOption {
	return func(t *Throttle) {
		if maxAttempts > 0 {
			t.maxAttempts = maxAttempts
		}
		if lockout > 0 {
			t.lockout = lockout
		}
	}
}

// WithThrottleClock overrides the time source (useful for tests).
func WithThrottleClock(fn func() time.Time) ThrottleOption {
	return func(t *Throttle) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewThrottle constructs a Throttle with the default 5-attempt / 300-second policy.
func NewThrottle(opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		records:     make(map[string]*attemptRecord),
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow reports whether a login attempt for username may proceed. A lockout
// that has elapsed is cleared lazily here; there is no background sweeper.
func (t *Throttle) Allow(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[username]
	if !ok {
		return true
	}
	now := t.now()
	if rec.lockedUntil.After(now) {
		return false
	}
	if !rec.lockedUntil.IsZero() {
		// Lockout elapsed: start over from zero attempts.
		t.records[username] = &attemptRecord{lastAttempt: now}
	}
	return true
}

// RecordFailure counts one failed attempt and reports whether this failure
// engaged the lockout.
func (t *Throttle) RecordFailure(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.records[username]
	if !ok {
		rec = &attemptRecord{}
		t.records[username] = rec
	}
	rec.attempts++
	rec.lastAttempt = now
	if rec.attempts >= t.maxAttempts {
		rec.lockedUntil = now.Add(t.lockout)
		return rec.attempts == t.maxAttempts
	}
	return false
}

// Reset deletes the record entirely. Called only after a successful login.
func (t *Throttle) Reset(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, username)
}

// Attempts returns the current failure count for username.
func (t *Throttle) Attempts(username string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[username]; ok {
		return rec.attempts
	}
	return 0
}
