package auth

import (
	"context"
	"database/sql"
	"errors"

	"forestwatch.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL through database/sql.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, username, password_hash, phone, created_at from users where username=$1`, username)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Phone, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts the user and its default-role assignment atomically.
// A user must never exist without at least the default role.
func (s *PGStore) CreateUser(ctx context.Context, username, passwordHash, phone, defaultRole string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var roleID int64
	err = tx.QueryRowContext(ctx, `select id from roles where name=$1`, defaultRole).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	var userID int64
	err = tx.QueryRowContext(ctx,
		`insert into users(username, password_hash, phone) values($1,$2,$3) returning id`,
		username, passwordHash, phone,
	).Scan(&userID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2)`, userID, roleID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *PGStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2 where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, description from roles where name=$1`, name)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// UserHasPermission resolves the user's roles through to permissions in a
// single statement so the check sees one consistent snapshot.
func (s *PGStore) UserHasPermission(ctx context.Context, userID int64, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(p.id)
		from users u
		join user_roles ur on ur.user_id = u.id
		join roles r on r.id = ur.role_id
		join role_permissions rp on rp.role_id = r.id
		join permissions p on p.id = rp.permission_id
		where u.id=$1 and p.code=$2
	`, userID, code).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PGStore) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.name from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id=$1 order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PGStore) AssignRole(ctx context.Context, userID, roleID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PGStore) RemoveRole(ctx context.Context, userID, roleID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`, userID, roleID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnsureCatalog provisions reference data idempotently. The whole batch runs
// in one transaction and rolls back on any failure.
func (s *PGStore) EnsureCatalog(ctx context.Context, catalog Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, role := range catalog.Roles {
		if _, err := tx.ExecContext(ctx,
			`insert into roles(name, description) values($1,$2) on conflict (name) do nothing`,
			role.Name, role.Description); err != nil {
			return err
		}
	}
	for _, code := range catalog.Permissions {
		if _, err := tx.ExecContext(ctx,
			`insert into permissions(code) values($1) on conflict (code) do nothing`, code); err != nil {
			return err
		}
	}
	for _, link := range catalog.Links {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions(role_id, permission_id)
			select r.id, p.id from roles r, permissions p
			where r.name=$1 and p.code=$2
			on conflict do nothing
		`, link.RoleName, link.PermissionCode); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, occurred_at, actor_id, action, target_id, detail)
		 values($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.OccurredAt, entry.ActorID, entry.Action, entry.TargetID, entry.Detail,
	)
	return err
}
