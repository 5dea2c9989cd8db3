package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"
)

const genericLoginMessage = "invalid username or password"

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	svc, err := NewService(NewPGStore(db), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, mock, func() { _ = db.Close() }
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func userRows(hash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "password_hash", "phone", "created_at"}).
		AddRow(int64(1), "alice", hash, "", time.Now())
}

func expectUserLookup(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery("select id, username, password_hash, phone, created_at from users").
		WithArgs("alice").WillReturnRows(rows)
}

func expectUserMissing(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("select id, username, password_hash, phone, created_at from users").
		WithArgs("alice").WillReturnError(sql.ErrNoRows)
}

func expectAudit(mock sqlmock.Sqlmock) {
	mock.ExpectExec("insert into audit_log").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestLoginUnknownUserGenericMessage(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	expectUserMissing(mock)

	res := svc.Login(context.Background(), "alice", "pw1")
	if res.Outcome.Kind != KindInvalidCredentials {
		t.Fatalf("unexpected kind: %v", res.Outcome.Kind)
	}
	if res.Outcome.Message != genericLoginMessage {
		t.Fatalf("unknown-user message must not differ: %q", res.Outcome.Message)
	}
	if res.UserID != 0 {
		t.Fatalf("unexpected user id %d", res.UserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginWrongPasswordGenericMessage(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	expectUserLookup(mock, userRows(mustHash(t, "pw1")))

	res := svc.Login(context.Background(), "alice", "wrong")
	if res.Outcome.Kind != KindInvalidCredentials {
		t.Fatalf("unexpected kind: %v", res.Outcome.Kind)
	}
	if res.Outcome.Message != genericLoginMessage {
		t.Fatalf("wrong-password message must not differ: %q", res.Outcome.Message)
	}
	if got := svc.throttle.Attempts("alice"); got != 1 {
		t.Fatalf("expected 1 counted failure, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	hash := mustHash(t, "pw1")

	expectUserLookup(mock, userRows(hash))

	res := svc.Login(context.Background(), "alice", "wrong")
	if res.Outcome.Kind != KindInvalidCredentials {
		t.Fatalf("unexpected kind: %v", res.Outcome.Kind)
	}

	expectUserLookup(mock, userRows(hash))
	expectAudit(mock)

	res = svc.Login(context.Background(), "alice", "pw1")
	if !res.Outcome.OK() {
		t.Fatalf("expected successful login: %v", res.Outcome)
	}
	if res.UserID != 1 {
		t.Fatalf("unexpected user id %d", res.UserID)
	}
	if got := svc.throttle.Attempts("alice"); got != 0 {
		t.Fatalf("expected failure counter cleared, got %d", got)
	}
	if !svc.CheckSession(1) {
		t.Fatalf("expected session recorded after login")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginWhileLockedDoesNotTouchStore(t *testing.T) {
	svc, mock, done := newTestService(t, WithLockoutPolicy(1, time.Minute))
	defer done()

	expectUserMissing(mock)
	expectAudit(mock) // lockout engages on the first failure

	if res := svc.Login(context.Background(), "alice", "pw1"); res.Outcome.Kind != KindInvalidCredentials {
		t.Fatalf("unexpected kind: %v", res.Outcome.Kind)
	}

	// No further expectations: a locked attempt must short-circuit before
	// the credential store.
	res := svc.Login(context.Background(), "alice", "pw1")
	if res.Outcome.Kind != KindAccountLocked {
		t.Fatalf("unexpected kind: %v", res.Outcome.Kind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("store was touched while locked: %v", err)
	}
}

func TestCheckPermissionExpiredSessionSkipsStore(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	// No session recorded, no store expectations.
	outcome := svc.CheckPermission(context.Background(), 1, PermResourceViewPublic)
	if outcome.Kind != KindSessionExpired {
		t.Fatalf("unexpected kind: %v", outcome.Kind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("store was queried for an expired session: %v", err)
	}
}

func TestCheckPermissionGrantedAndDenied(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	svc.sessions.Record(1)

	mock.ExpectQuery("select count").
		WithArgs(int64(1), PermResourceViewPublic).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	outcome := svc.CheckPermission(context.Background(), 1, PermResourceViewPublic)
	if !outcome.OK() {
		t.Fatalf("expected grant: %v", outcome)
	}

	mock.ExpectQuery("select count").
		WithArgs(int64(1), PermWarningManageRules).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	outcome = svc.CheckPermission(context.Background(), 1, PermWarningManageRules)
	if outcome.Kind != KindPermissionDenied {
		t.Fatalf("unexpected kind: %v", outcome.Kind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantRoleIdempotent(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	roleRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(int64(3), RoleRanger, "")
	}

	mock.ExpectQuery("select id, name, description from roles").
		WithArgs(RoleRanger).WillReturnRows(roleRows())
	mock.ExpectExec("insert into user_roles").
		WithArgs(int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAudit(mock)

	outcome := svc.GrantRole(context.Background(), 1, RoleRanger)
	if !outcome.OK() {
		t.Fatalf("expected grant: %v", outcome)
	}

	mock.ExpectQuery("select id, name, description from roles").
		WithArgs(RoleRanger).WillReturnRows(roleRows())
	mock.ExpectExec("insert into user_roles").
		WithArgs(int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	outcome = svc.GrantRole(context.Background(), 1, RoleRanger)
	if outcome.Kind != KindAlreadyHasRole {
		t.Fatalf("unexpected kind: %v", outcome.Kind)
	}
	if !outcome.Informational() {
		t.Fatalf("duplicate grant must be informational, not a failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantRoleNotFound(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("select id, name, description from roles").
		WithArgs("Warden").WillReturnError(sql.ErrNoRows)

	outcome := svc.GrantRole(context.Background(), 1, "Warden")
	if outcome.Kind != KindRoleNotFound {
		t.Fatalf("unexpected kind: %v", outcome.Kind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRevokeRoleUserNeverHad(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("select id, name, description from roles").
		WithArgs(RoleRanger).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(int64(3), RoleRanger, ""))
	mock.ExpectExec("delete from user_roles").
		WithArgs(int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	outcome := svc.RevokeRole(context.Background(), 1, RoleRanger)
	if outcome.Kind != KindDidNotHaveRole {
		t.Fatalf("unexpected kind: %v", outcome.Kind)
	}
	if !outcome.Informational() {
		t.Fatalf("revoke of an absent role must be informational")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterDuplicateUsernamePerformsNoWrites(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	expectUserLookup(mock, userRows(mustHash(t, "pw1")))

	res := svc.RegisterUser(context.Background(), "alice", "pw2", "")
	if res.Outcome.Kind != KindDuplicateUsername {
		t.Fatalf("unexpected kind: %v", res.Outcome.Kind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("writes happened for a duplicate username: %v", err)
	}
}

func expectCatalogProvisioning(mock sqlmock.Sqlmock) {
	catalog := BuiltinCatalog()
	mock.ExpectBegin()
	for range catalog.Roles {
		mock.ExpectExec("insert into roles").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for range catalog.Permissions {
		mock.ExpectExec("insert into permissions").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for range catalog.Links {
		mock.ExpectExec("insert into role_permissions").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
}

func expectCreateUser(mock sqlmock.Sqlmock, userID int64) {
	mock.ExpectBegin()
	mock.ExpectQuery("select id from roles").
		WithArgs(DefaultRole).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("insert into users").
		WithArgs("alice", sqlmock.AnyArg(), "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID))
	mock.ExpectExec("insert into user_roles").
		WithArgs(userID, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestRegisterRepairsMissingCatalog(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	expectUserMissing(mock)

	// First attempt: default role missing, transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectQuery("select id from roles").
		WithArgs(DefaultRole).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	expectCatalogProvisioning(mock)
	expectCreateUser(mock, 7)
	expectAudit(mock)

	res := svc.RegisterUser(context.Background(), "alice", "pw1", "")
	if !res.Outcome.OK() {
		t.Fatalf("expected registration to succeed after repair: %v", res.Outcome)
	}
	if res.UserID != 7 {
		t.Fatalf("unexpected user id %d", res.UserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLockoutScenarioEndToEnd(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc, mock, done := newTestService(t, WithClock(func() time.Time { return now }))
	defer done()

	hash := mustHash(t, "pw1")

	// Register alice; the catalog is present.
	expectUserMissing(mock)
	expectCreateUser(mock, 1)
	expectAudit(mock)

	res := svc.RegisterUser(context.Background(), "alice", "pw1", "")
	if !res.Outcome.OK() {
		t.Fatalf("register: %v", res.Outcome)
	}

	// Five wrong passwords in a row.
	for i := 0; i < DefaultMaxAttempts; i++ {
		expectUserLookup(mock, userRows(hash))
		if i == DefaultMaxAttempts-1 {
			expectAudit(mock) // lockout engages on the fifth failure
		}
		out := svc.Login(context.Background(), "alice", "wrong")
		if out.Outcome.Kind != KindInvalidCredentials {
			t.Fatalf("attempt %d: unexpected kind %v", i+1, out.Outcome.Kind)
		}
	}

	// Sixth attempt is rejected as locked even with the correct password,
	// and the store is not consulted.
	out := svc.Login(context.Background(), "alice", "pw1")
	if out.Outcome.Kind != KindAccountLocked {
		t.Fatalf("expected lockout, got %v", out.Outcome.Kind)
	}

	// Wait out the lockout window, then log in correctly.
	now = now.Add(DefaultLockout + time.Second)
	expectUserLookup(mock, userRows(hash))
	expectAudit(mock)

	out = svc.Login(context.Background(), "alice", "pw1")
	if !out.Outcome.OK() {
		t.Fatalf("login after lockout: %v", out.Outcome)
	}
	if got := svc.throttle.Attempts("alice"); got != 0 {
		t.Fatalf("expected counter cleared, got %d", got)
	}

	// The default role carries resource:view_public.
	mock.ExpectQuery("select count").
		WithArgs(out.UserID, PermResourceViewPublic).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	perm := svc.CheckPermission(context.Background(), out.UserID, PermResourceViewPublic)
	if !perm.OK() {
		t.Fatalf("expected default-role permission grant: %v", perm)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRolesListsNames(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("select r.name from roles r").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow(RolePublicUser).AddRow(RoleRanger))

	roles, outcome := svc.UserRoles(context.Background(), 1)
	if !outcome.OK() {
		t.Fatalf("UserRoles: %v", outcome)
	}
	if len(roles) != 2 || roles[0] != RolePublicUser || roles[1] != RoleRanger {
		t.Fatalf("unexpected roles: %v", roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
