package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"flowdeck.io/internal/audit"
	"flowdeck.io/internal/auth"
	"flowdeck.io/internal/obs"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	apiKeyHeader = "X-API-Key"
)

// Failure reasons of the outbound contract. Stable strings: clients match
// on them.
const (
	reasonAuthRequired = "authentication required"
	reasonBadToken     = "invalid or expired token"
	reasonBadAPIKey    = "invalid API key"
	reasonTenantDenied = "forbidden: tenant access denied"
	reasonRoleDenied   = "forbidden: admin accounts require admin privileges"
)

var publicPaths = map[string]struct{}{
	"/v1/auth/login": {},
	"/healthz":       {},
	"/readyz":        {},
	"/metrics":       {},
}

// withAuth drives the per-request credential state machine. Credential
// precedence is fixed: X-API-Key is checked first, a Bearer token is the
// fallback. The order never varies, so a request carrying both cannot be
// confused about which principal acted.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
			identity, err := a.svc.VerifyAPIKey(r.Context(), key)
			if err != nil {
				obs.CountAPIKeyLookup("denied")
				if errors.Is(err, auth.ErrInvalidCredentials) {
					writeError(w, r, http.StatusUnauthorized, reasonBadAPIKey)
				} else {
					writeError(w, r, http.StatusInternalServerError, "authentication error")
				}
				return
			}
			obs.CountAPIKeyLookup("ok")
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
			return
		}

		if token, ok := extractBearerToken(r.Header.Get(authHeader)); ok {
			identity, err := a.svc.AuthenticateToken(r.Context(), token)
			if err != nil {
				obs.CountTokenVerification("denied")
				switch {
				case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid):
					writeError(w, r, http.StatusUnauthorized, reasonBadToken)
				default:
					writeError(w, r, http.StatusInternalServerError, "authentication error")
				}
				return
			}
			obs.CountTokenVerification("ok")
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
			return
		}

		writeError(w, r, http.StatusUnauthorized, reasonAuthRequired)
	})
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// requirePermission gates the handler on a capability. Writes the 403 and
// returns false on failure; the reason names the missing capability, which
// is safe to disclose.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, capability string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, reasonAuthRequired)
		return false
	}
	if err := auth.CheckPermission(identity, capability); err != nil {
		_ = audit.LogEvent(r.Context(), "auth.denied", map[string]any{
			"reason":     "missing_permission",
			"capability": capability,
			"path":       r.URL.Path,
		})
		writeError(w, r, http.StatusForbidden, "forbidden: missing "+capability)
		return false
	}
	return true
}

// requireTenant gates the handler on tenant scope. The reason stays generic:
// it must not confirm or deny the target tenant's existence.
func (a *API) requireTenant(w http.ResponseWriter, r *http.Request, tenantID string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, reasonAuthRequired)
		return false
	}
	if err := auth.CheckTenantAccess(identity, tenantID); err != nil {
		_ = audit.LogEvent(r.Context(), "auth.denied", map[string]any{
			"reason": "tenant_mismatch",
			"path":   r.URL.Path,
		})
		writeError(w, r, http.StatusForbidden, reasonTenantDenied)
		return false
	}
	return true
}
