package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/httputil"
	"github.com/steeplehq/steeple/pkg/tenants"
)

// ChurchService is the church management surface the handlers consume.
type ChurchService interface {
	CreateChurch(ctx context.Context, session *auth.Session, req *tenants.CreateChurchRequest) (*tenants.Church, error)
	GetChurch(ctx context.Context, id string) (*tenants.Church, error)
	ListChurches(ctx context.Context, session *auth.Session) ([]*tenants.Church, error)
	UpdateChurch(ctx context.Context, session *auth.Session, churchID string, updates *tenants.UpdateChurchRequest) (*tenants.Church, error)
	DeleteChurch(ctx context.Context, session *auth.Session, churchID string) error

	ListMembers(ctx context.Context, session *auth.Session, churchID string) ([]*tenants.Member, error)
	UpdateMemberRole(ctx context.Context, session *auth.Session, churchID, userID, requestedRole string) (*tenants.Member, error)
	UpdateMemberStatus(ctx context.Context, session *auth.Session, churchID, userID string, status auth.ProfileStatus) (*tenants.Member, error)
	RemoveMember(ctx context.Context, session *auth.Session, churchID, userID string) error
}

// ChurchHandlers handles church-related HTTP requests.
type ChurchHandlers struct {
	churches ChurchService
	validate *validator.Validate
}

// NewChurchHandlers creates a new ChurchHandlers.
func NewChurchHandlers(churches ChurchService) *ChurchHandlers {
	return &ChurchHandlers{
		churches: churches,
		validate: validator.New(),
	}
}

// RegisterRoutes registers church routes.
func (h *ChurchHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/churches", h.CreateChurch).Methods("POST")
	router.HandleFunc("/churches", h.ListChurches).Methods("GET")
	router.HandleFunc("/churches/{id}", h.GetChurch).Methods("GET")
	router.HandleFunc("/churches/{id}", h.UpdateChurch).Methods("PUT")
	router.HandleFunc("/churches/{id}", h.DeleteChurch).Methods("DELETE")

	router.HandleFunc("/churches/{id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/churches/{id}/members/{user_id}/role", h.UpdateMemberRole).Methods("PUT")
	router.HandleFunc("/churches/{id}/members/{user_id}/status", h.UpdateMemberStatus).Methods("PUT")
	router.HandleFunc("/churches/{id}/members/{user_id}", h.RemoveMember).Methods("DELETE")
}

// CreateChurch creates a new church.
func (h *ChurchHandlers) CreateChurch(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req tenants.CreateChurchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	church, err := h.churches.CreateChurch(r.Context(), session, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, church)
}

// ListChurches lists all churches.
func (h *ChurchHandlers) ListChurches(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churches, err := h.churches.ListChurches(r.Context(), session)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, churches)
}

// GetChurch retrieves one church.
func (h *ChurchHandlers) GetChurch(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	church, err := h.churches.GetChurch(r.Context(), churchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, church)
}

// UpdateChurch applies a partial update to a church.
func (h *ChurchHandlers) UpdateChurch(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req tenants.UpdateChurchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	church, err := h.churches.UpdateChurch(r.Context(), session, churchID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, church)
}

// DeleteChurch removes a church.
func (h *ChurchHandlers) DeleteChurch(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.churches.DeleteChurch(r.Context(), session, churchID); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
