package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"forestwatch.org/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type checkPermissionRequest struct {
	Permission string `json:"permission"`
}

type grantRoleRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := a.svc.RegisterUser(r.Context(), strings.TrimSpace(req.Username), req.Password, strings.TrimSpace(req.Phone))
	code := statusForKind(res.Outcome.Kind)
	if res.Outcome.OK() {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{
		"user_id": res.UserID,
		"kind":    res.Outcome.Kind.String(),
		"message": res.Outcome.Message,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := a.svc.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if !res.Outcome.OK() {
		writeJSON(w, statusForKind(res.Outcome.Kind), map[string]any{
			"kind":    res.Outcome.Kind.String(),
			"message": res.Outcome.Message,
		})
		return
	}

	var (
		token   string
		expires time.Time
	)
	if a.tokens != nil {
		var err error
		token, expires, err = a.tokens.Issue(res.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "token issuance failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    res.UserID,
		"kind":       res.Outcome.Kind.String(),
		"message":    res.Outcome.Message,
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	a.svc.Logout(userID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": a.svc.CheckSession(userID)})
}

func (a *API) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req checkPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome := a.svc.CheckPermission(r.Context(), userID, strings.TrimSpace(req.Permission))
	writeJSON(w, statusForKind(outcome.Kind), map[string]any{
		"granted": outcome.OK(),
		"kind":    outcome.Kind.String(),
		"message": outcome.Message,
	})
}

// handleUserScoped routes /v1/users/{id}/roles[/{role}] and
// /v1/users/{id}/password. These are administrative operations: the caller
// must hold role:manage, enforced here before the core operation runs.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 || (parts[1] != "roles" && parts[1] != "password") {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	targetID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || targetID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	callerID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if gate := a.svc.CheckPermission(r.Context(), callerID, auth.PermRoleManage); !gate.OK() {
		writeJSON(w, statusForKind(gate.Kind), map[string]any{
			"kind":    gate.Kind.String(),
			"message": gate.Message,
		})
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "roles" && r.Method == http.MethodGet:
		a.handleListRoles(w, r, targetID)
	case len(parts) == 2 && parts[1] == "roles" && r.Method == http.MethodPost:
		a.handleGrantRole(w, r, targetID)
	case len(parts) == 3 && parts[1] == "roles" && r.Method == http.MethodDelete:
		a.handleRevokeRole(w, r, targetID, parts[2])
	case len(parts) == 2 && parts[1] == "password" && r.Method == http.MethodPut:
		a.handleResetPassword(w, r, targetID)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request, targetID int64) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome := a.svc.ResetPassword(r.Context(), targetID, req.Password)
	writeJSON(w, statusForKind(outcome.Kind), map[string]any{
		"kind":    outcome.Kind.String(),
		"message": outcome.Message,
	})
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request, targetID int64) {
	roles, outcome := a.svc.UserRoles(r.Context(), targetID)
	if !outcome.OK() {
		writeJSON(w, statusForKind(outcome.Kind), map[string]any{
			"kind":    outcome.Kind.String(),
			"message": outcome.Message,
		})
		return
	}
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": targetID, "roles": roles})
}

func (a *API) handleGrantRole(w http.ResponseWriter, r *http.Request, targetID int64) {
	var req grantRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome := a.svc.GrantRole(r.Context(), targetID, strings.TrimSpace(req.Role))
	writeJSON(w, statusForKind(outcome.Kind), map[string]any{
		"kind":    outcome.Kind.String(),
		"message": outcome.Message,
	})
}

func (a *API) handleRevokeRole(w http.ResponseWriter, r *http.Request, targetID int64, roleName string) {
	outcome := a.svc.RevokeRole(r.Context(), targetID, roleName)
	writeJSON(w, statusForKind(outcome.Kind), map[string]any{
		"kind":    outcome.Kind.String(),
		"message": outcome.Message,
	})
}
