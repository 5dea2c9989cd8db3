package auth

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("auth: already exists")
)

// Store describes the persistence operations the auth subsystem requires
// from the credential store. Implementations auto-commit single writes and
// roll back multi-statement writes on any failure.
type Store interface {
	// FindUserByUsername returns ErrNotFound when no such user exists.
	FindUserByUsername(ctx context.Context, username string) (*User, error)

	// CreateUser inserts the user row and its default-role assignment in
	// one transaction and returns the new user id. Returns ErrNotFound when
	// the named default role is missing from the reference data.
	CreateUser(ctx context.Context, username, passwordHash, phone, defaultRole string) (int64, error)

	// UpdatePassword replaces the stored hash for userID.
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	// FindRoleByName returns ErrNotFound when the role does not exist.
	FindRoleByName(ctx context.Context, name string) (*Role, error)

	// UserHasPermission reports whether any role assigned to userID reaches
	// the permission code through the role-permission links.
	UserHasPermission(ctx context.Context, userID int64, code string) (bool, error)

	// UserRoles returns the names of the roles assigned to userID.
	UserRoles(ctx context.Context, userID int64) ([]string, error)

	// AssignRole inserts the (user, role) pair if absent. Reports false when
	// the pair already existed.
	AssignRole(ctx context.Context, userID, roleID int64) (bool, error)

	// RemoveRole deletes the (user, role) pair. Reports false when there was
	// nothing to delete.
	RemoveRole(ctx context.Context, userID, roleID int64) (bool, error)

	// EnsureCatalog provisions the builtin roles, permissions, and links
	// idempotently (insert-if-absent) inside one transaction.
	EnsureCatalog(ctx context.Context, catalog Catalog) error

	// AppendAudit records an entry in the append-only audit log.
	AppendAudit(ctx context.Context, entry *AuditEntry) error
}
