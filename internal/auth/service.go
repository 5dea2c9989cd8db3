package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forestwatch.org/internal/obs"
)

// Service provides login, registration, session, and role administration
// over a credential store. Every public operation returns a structured
// Outcome; store failures are translated at this boundary and never
// propagate as raised faults.
type Service struct {
	store    Store
	throttle *Throttle
	sessions *SessionRegistry

	now         func() time.Time
	bcryptCost  int
	sessionTTL  time.Duration
	maxAttempts int
	lockout     time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source for the service, its throttle, and
// its session registry (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithBcryptCost sets the hashing work factor for newly issued hashes.
// Previously issued hashes keep verifying regardless of this setting.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithSessionTimeout overrides the session idle timeout.
func WithSessionTimeout(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithLockoutPolicy overrides the failed-attempt threshold and lockout duration.
func WithLockoutPolicy(maxAttempts int, lockout time.Duration) ServiceOption {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if lockout > 0 {
			s.lockout = lockout
		}
	}
}

// NewService constructs a Service owning fresh throttle and session state.
// Both are process-local: restarting the process discards all sessions and
// attempt counters.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	s := &Service{
		store:       store,
		now:         time.Now,
		sessionTTL:  DefaultSessionTTL,
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.throttle = NewThrottle(
		WithThrottleLimits(s.maxAttempts, s.lockout),
		WithThrottleClock(s.now),
	)
	s.sessions = NewSessionRegistry(
		WithSessionTTL(s.sessionTTL),
		WithSessionClock(s.now),
	)
	return s, nil
}

// EnsureCatalog provisions the builtin roles, permissions, and links
// idempotently. Run once at startup; registration re-invokes it only when
// reference data turns out to be missing.
func (s *Service) EnsureCatalog(ctx context.Context) error {
	return s.store.EnsureCatalog(ctx, BuiltinCatalog())
}

// Login authenticates username/password. The throttle is consulted before
// the store is touched, and unknown-user and wrong-password failures
// produce the same generic message.
func (s *Service) Login(ctx context.Context, username, password string) LoginResult {
	if !s.throttle.Allow(username) {
		obs.ObserveLogin(KindAccountLocked.String())
		return LoginResult{Outcome: Outcome{KindAccountLocked, "account temporarily locked, try again later"}}
	}

	user, err := s.store.FindUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		s.countFailure(ctx, username)
		obs.ObserveLogin(KindInvalidCredentials.String())
		return LoginResult{Outcome: Outcome{KindInvalidCredentials, "invalid username or password"}}
	}
	if err != nil {
		obs.ObserveLogin(KindStoreUnavailable.String())
		return LoginResult{Outcome: Outcome{KindStoreUnavailable, "service temporarily unavailable"}}
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.countFailure(ctx, username)
		obs.ObserveLogin(KindInvalidCredentials.String())
		return LoginResult{Outcome: Outcome{KindInvalidCredentials, "invalid username or password"}}
	}

	s.throttle.Reset(username)
	s.sessions.Record(user.ID)
	obs.ObserveLogin(KindOK.String())
	obs.SetActiveSessions(s.sessions.Active())
	s.audit(ctx, user.ID, "auth.login", user.ID, "")
	return LoginResult{UserID: user.ID, Outcome: Outcome{KindOK, "login successful"}}
}

// RegisterResult carries the new user identifier on success.
type RegisterResult struct {
	UserID  int64
	Outcome Outcome
}

// RegisterUser creates an account with the default role. The user row and
// the role assignment are written in one transaction; if the reference data
// has not been provisioned yet it is repaired first, so registration never
// fails merely because the catalog was not pre-seeded.
func (s *Service) RegisterUser(ctx context.Context, username, password, phone string) RegisterResult {
	if username == "" || password == "" {
		return RegisterResult{Outcome: Outcome{KindInvalidCredentials, "username and password are required"}}
	}

	_, err := s.store.FindUserByUsername(ctx, username)
	if err == nil {
		return RegisterResult{Outcome: Outcome{KindDuplicateUsername, "username already taken"}}
	}
	if !errors.Is(err, ErrNotFound) {
		return RegisterResult{Outcome: Outcome{KindStoreUnavailable, "service temporarily unavailable"}}
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return RegisterResult{Outcome: Outcome{KindStoreUnavailable, "service temporarily unavailable"}}
	}

	userID, err := s.store.CreateUser(ctx, username, hash, phone, DefaultRole)
	if errors.Is(err, ErrNotFound) {
		// Default role missing: repair the catalog and retry once.
		if err := s.EnsureCatalog(ctx); err != nil {
			return RegisterResult{Outcome: Outcome{KindStoreUnavailable, "service temporarily unavailable"}}
		}
		userID, err = s.store.CreateUser(ctx, username, hash, phone, DefaultRole)
	}
	if err != nil {
		return RegisterResult{Outcome: Outcome{KindStoreUnavailable, "service temporarily unavailable"}}
	}

	s.audit(ctx, userID, "auth.register", userID, DefaultRole)
	msg := fmt.Sprintf("registration successful, default role assigned: %s", DefaultRole)
	return RegisterResult{UserID: userID, Outcome: Outcome{KindOK, msg}}
}

// CheckSession reports whether userID has a live session, renewing it when
// it does. The timeout window is sliding, so an active user is never logged
// out mid-session.
func (s *Service) CheckSession(userID int64) bool {
	ok := s.sessions.Check(userID)
	obs.SetActiveSessions(s.sessions.Active())
	return ok
}

// Logout removes all session state for userID.
func (s *Service) Logout(userID int64) {
	s.sessions.Remove(userID)
	obs.SetActiveSessions(s.sessions.Active())
}

// CheckPermission evaluates whether userID holds the permission code. The
// session gate always runs first: an expired identity is never evaluated
// against the store, even if the store would say yes.
func (s *Service) CheckPermission(ctx context.Context, userID int64, code string) Outcome {
	if !s.CheckSession(userID) {
		return Outcome{KindSessionExpired, "session expired or invalid, log in again"}
	}
	granted, err := s.store.UserHasPermission(ctx, userID, code)
	if err != nil {
		return Outcome{KindStoreUnavailable, "service temporarily unavailable"}
	}
	if !granted {
		return Outcome{KindPermissionDenied, fmt.Sprintf("missing permission: %s", code)}
	}
	return Outcome{KindOK, "permission granted"}
}

// GrantRole assigns roleName to the target user. A duplicate grant is
// reported as AlreadyHasRole, not a failure.
func (s *Service) GrantRole(ctx context.Context, targetUserID int64, roleName string) Outcome {
	role, err := s.store.FindRoleByName(ctx, roleName)
	if errors.Is(err, ErrNotFound) {
		return Outcome{KindRoleNotFound, fmt.Sprintf("role %q does not exist", roleName)}
	}
	if err != nil {
		return Outcome{KindStoreUnavailable, "service temporarily unavailable"}
	}

	inserted, err := s.store.AssignRole(ctx, targetUserID, role.ID)
	if err != nil {
		return Outcome{KindStoreUnavailable, "service temporarily unavailable"}
	}
	if !inserted {
		return Outcome{KindAlreadyHasRole, fmt.Sprintf("user %d already has role %q", targetUserID, roleName)}
	}
	s.audit(ctx, 0, "auth.role.grant", targetUserID, roleName)
	return Outcome{KindOK, fmt.Sprintf("granted role %q to user %d", roleName, targetUserID)}
}

// RevokeRole removes roleName from the target user. Revoking an absent role
// is reported as DidNotHaveRole, not a failure.
func (s *Service) RevokeRole(ctx context.Context, targetUserID int64, roleName string) Outcome {
	role, err := s.store.FindRoleByName(ctx, roleName)
	if errors.Is(err, ErrNotFound) {
		return Outcome{KindRoleNotFound, fmt.Sprintf("role %q does not exist", roleName)}
	}
	if err != nil {
		return Outcome{KindStoreUnavailable, "service temporarily unavailable"}
	}

	deleted, err := s.store.RemoveRole(ctx, targetUserID, role.ID)
	if err != nil {
		return Outcome{KindStoreUnavailable, "service temporarily unavailable"}
	}
	if !deleted {
		return Outcome{KindDidNotHaveRole, fmt.Sprintf("user %d did not have role %q", targetUserID, roleName)}
	}
	s.audit(ctx, 0, "auth.role.revoke", targetUserID, roleName)
	return Outcome{KindOK, fmt.Sprintf("revoked role %q from user %d", roleName, targetUserID)}
}

// UserRoles lists the role names currently assigned to userID.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]string, Outcome) {
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, Outcome{KindStoreUnavailable, "service temporarily unavailable"}
	}
	return roles, Outcome{KindOK, "ok"}
}

// ResetPassword replaces the stored hash for userID with a fresh one at the
// current cost. Existing sessions are left untouched.
func (s *Service) ResetPassword(ctx context.Context, userID int64, newPassword string) Outcome {
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return Outcome{KindInvalidCredentials, "password is empty"}
	}
	err = s.store.UpdatePassword(ctx, userID, hash)
	if errors.Is(err, ErrNotFound) {
		return Outcome{KindInvalidCredentials, "unknown user"}
	}
	if err != nil {
		return Outcome{KindStoreUnavailable, "service temporarily unavailable"}
	}
	s.audit(ctx, 0, "auth.password.reset", userID, "")
	return Outcome{KindOK, "password updated"}
}

func (s *Service) countFailure(ctx context.Context, username string) {
	if s.throttle.RecordFailure(username) {
		obs.LockoutEngaged()
		s.audit(ctx, 0, "auth.lockout", 0, username)
	}
}

// audit appends a log entry best-effort; an unavailable audit trail must
// not fail the operation that triggered it.
func (s *Service) audit(ctx context.Context, actorID int64, action string, targetID int64, detail string) {
	entry := &AuditEntry{
		OccurredAt: s.now().UTC(),
		ActorID:    actorID,
		Action:     action,
		TargetID:   targetID,
		Detail:     detail,
	}
	_ = s.store.AppendAudit(ctx, entry)
}
