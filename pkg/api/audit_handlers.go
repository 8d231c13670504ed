package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/steeplehq/steeple/pkg/audit"
	"github.com/steeplehq/steeple/pkg/authz"
	"github.com/steeplehq/steeple/pkg/httputil"
	"github.com/steeplehq/steeple/pkg/roles"
)

// AuditSearcher is the read side of the audit trail.
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Entry, error)
}

// AuditHandlers serves the audit viewer.
type AuditHandlers struct {
	store AuditSearcher
}

// NewAuditHandlers creates a new AuditHandlers.
func NewAuditHandlers(store AuditSearcher) *AuditHandlers {
	return &AuditHandlers{store: store}
}

// RegisterRoutes registers audit routes.
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/churches/{id}/audit", h.SearchChurchAudit).Methods("GET")
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// SearchChurchAudit lists audit entries for one church. Viewing the
// trail requires church access plus the manage-church capability, so
// only admins see it.
func (h *AuditHandlers) SearchChurchAudit(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := authz.RequireChurchAccess(session, churchID); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := authz.RequireCapability(session, roles.CapManageChurch); err != nil {
		writeServiceError(w, err)
		return
	}

	filter := audit.SearchFilter{ChurchID: &churchID}
	filter.TableName = httputil.ParseQueryString(r, "table", "")
	filter.RecordID = httputil.ParseQueryString(r, "record", "")
	filter.ActorID = httputil.ParseQueryString(r, "actor", "")

	for _, action := range r.URL.Query()["action"] {
		filter.Actions = append(filter.Actions, audit.Action(action))
	}

	var err error
	if filter.Since, err = parseQueryTime(r, "since"); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if filter.Until, err = parseQueryTime(r, "until"); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", defaultAuditLimit)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	filter.Limit = limit

	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	entries, err := h.store.Search(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	httputil.WriteSuccess(w, entries)
}

func parseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
