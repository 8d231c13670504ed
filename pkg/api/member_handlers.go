package api

import (
	"net/http"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/httputil"
	"github.com/steeplehq/steeple/pkg/tenants"
)

// ListMembers lists the members of a church.
func (h *ChurchHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	members, err := h.churches.ListMembers(r.Context(), session, churchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// UpdateMemberRole changes a member's role.
func (h *ChurchHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	var req tenants.UpdateMemberRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	member, err := h.churches.UpdateMemberRole(r.Context(), session, churchID, userID, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, member)
}

// UpdateMemberStatus changes a member's lifecycle status.
func (h *ChurchHandlers) UpdateMemberStatus(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	var req tenants.UpdateMemberStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	member, err := h.churches.UpdateMemberStatus(r.Context(), session, churchID, userID, auth.ProfileStatus(req.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, member)
}

// RemoveMember detaches a member from a church.
func (h *ChurchHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	churchID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.churches.RemoveMember(r.Context(), session, churchID, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
