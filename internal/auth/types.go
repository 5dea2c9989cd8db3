package auth

import "time"

// User is an account row owned by the credential store. The identifier is
// assigned on registration and never changes afterwards.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Phone        string
	CreatedAt    time.Time
}

// Role groups permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
}

// Permission is a fine-grained capability identified by a unique code string.
type Permission struct {
	ID   int64
	Code string
}

// RoleAssignment links a user to a role. A (user, role) pair exists at most once.
type RoleAssignment struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// AuditEntry records a security-relevant action in the append-only log.
type AuditEntry struct {
	ID         string
	OccurredAt time.Time
	ActorID    int64
	Action     string
	TargetID   int64
	Detail     string
}

// Kind is the closed set of outcomes a public auth operation can produce.
// Store-level failures never escape as raised faults; they are translated
// into KindStoreUnavailable at the operation boundary.
type Kind int

const (
	KindOK Kind = iota
	KindAccountLocked
	KindInvalidCredentials
	KindDuplicateUsername
	KindSessionExpired
	KindPermissionDenied
	KindRoleNotFound
	KindAlreadyHasRole
	KindDidNotHaveRole
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindAccountLocked:
		return "account_locked"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindDuplicateUsername:
		return "duplicate_username"
	case KindSessionExpired:
		return "session_expired"
	case KindPermissionDenied:
		return "permission_denied"
	case KindRoleNotFound:
		return "role_not_found"
	case KindAlreadyHasRole:
		return "already_has_role"
	case KindDidNotHaveRole:
		return "did_not_have_role"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Outcome is the structured result of a public operation: a kind from the
// closed enumeration plus a message suitable for direct display.
type Outcome struct {
	Kind    Kind
	Message string
}

// OK reports whether the operation fully succeeded.
func (o Outcome) OK() bool { return o.Kind == KindOK }

// Informational reports whether the outcome is a non-error notice rather
// than a failure (duplicate grant, revoke of an absent role).
func (o Outcome) Informational() bool {
	return o.Kind == KindAlreadyHasRole || o.Kind == KindDidNotHaveRole
}

// LoginResult carries the authenticated user identifier on success.
// UserID is zero unless Outcome.OK().
type LoginResult struct {
	UserID  int64
	Outcome Outcome
}
