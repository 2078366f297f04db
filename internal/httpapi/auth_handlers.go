package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"flowdeck.io/internal/audit"
	"flowdeck.io/internal/auth"
	"flowdeck.io/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.CountLogin("denied")
			_ = audit.LogEvent(r.Context(), "auth.login_failed", map[string]any{
				"remote": clientIP(r),
			})
			writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
			return
		}
		obs.CountLogin("error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	obs.CountLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": res.Identity.ID,
		"tenant":  res.Identity.TenantID,
		"role":    string(res.Identity.Role),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.Identity,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, reasonAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

type createUserRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions"`
}

type createUserResponse struct {
	User   auth.Identity `json:"user"`
	APIKey string        `json:"api_key"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requirePermission(w, r, auth.PermUsersWrite) {
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// The target tenant of this route travels in the body, not the path.
	// The tenant gate still applies: a non-admin with users:write may only
	// populate their own tenant, and never mint an admin account.
	if !a.requireTenant(w, r, req.TenantID) {
		return
	}
	if caller, ok := auth.IdentityFromContext(r.Context()); ok && !caller.IsAdmin() {
		if auth.ParseRole(req.Role) == auth.RoleAdmin {
			_ = audit.LogEvent(r.Context(), "auth.denied", map[string]any{
				"reason": "role_escalation",
				"path":   r.URL.Path,
			})
			writeError(w, r, http.StatusForbidden, reasonRoleDenied)
			return
		}
	}

	identity, apiKey, err := a.svc.CreateUser(r.Context(), auth.CreateUserParams{
		Email:       req.Email,
		Password:    req.Password,
		Role:        auth.Role(req.Role),
		TenantID:    req.TenantID,
		Permissions: req.Permissions,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			writeError(w, r, http.StatusConflict, auth.ErrDuplicateEmail.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	_ = audit.LogEvent(r.Context(), "user.created", map[string]any{
		"user_id": identity.ID,
		"email":   identity.Email,
		"role":    string(identity.Role),
		"tenant":  identity.TenantID,
	})
	// The API key appears in this response and nowhere else.
	writeJSON(w, http.StatusCreated, createUserResponse{User: identity, APIKey: apiKey})
}

// handleUserResource routes /v1/users/{id} and /v1/users/{id}/deactivate.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleUserByID(w, r, userID)
	case len(parts) == 2 && parts[1] == "deactivate":
		a.handleDeactivate(w, r, userID)
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermUsersRead) {
		return
	}
	identity, err := a.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !a.requireTenant(w, r, identity.TenantID) {
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requirePermission(w, r, auth.PermUsersWrite) {
		return
	}
	target, err := a.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !a.requireTenant(w, r, target.TenantID) {
		return
	}
	if err := a.svc.Deactivate(r.Context(), userID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deactivated", map[string]any{
		"user_id": userID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated", "user_id": userID})
}
