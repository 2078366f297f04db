package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"flowdeck.io/internal/auth"
	"flowdeck.io/internal/engine"
)

const defaultExecutionLimit = 50

// handleTenantScoped routes /v1/tenants/{id}/workflows and
// /v1/tenants/{id}/stats. Every branch passes both gates: the capability
// check and the tenant scope check, in that order.
func (a *API) handleTenantScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/tenants/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	tenantID := parts[0]

	switch parts[1] {
	case "workflows":
		a.handleTenantWorkflows(w, r, tenantID)
	case "stats":
		a.handleTenantStats(w, r, tenantID)
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleTenantWorkflows(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermSchedulerRead) {
		return
	}
	if !a.requireTenant(w, r, tenantID) {
		return
	}
	if a.engine == nil {
		writeError(w, r, http.StatusServiceUnavailable, "workflow engine not configured")
		return
	}

	limit := defaultExecutionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer between 1 and 200")
			return
		}
		limit = n
	}

	execs, err := a.engine.ListExecutions(r.Context(), tenantID, limit)
	if err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			writeError(w, r, http.StatusBadGateway, "workflow engine unavailable")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":  tenantID,
		"executions": execs,
	})
}

func (a *API) handleTenantStats(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermStatsRead) {
		return
	}
	if !a.requireTenant(w, r, tenantID) {
		return
	}
	if a.engine == nil {
		writeError(w, r, http.StatusServiceUnavailable, "workflow engine not configured")
		return
	}

	counts, err := a.engine.CountExecutions(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			writeError(w, r, http.StatusBadGateway, "workflow engine unavailable")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	executor := "ok"
	if err := a.engine.Health(r.Context()); err != nil {
		executor = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"counts":    counts,
		"executor":  executor,
	})
}
