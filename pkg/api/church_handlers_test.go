package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/authz"
	"github.com/steeplehq/steeple/pkg/contextkeys"
	"github.com/steeplehq/steeple/pkg/roles"
	"github.com/steeplehq/steeple/pkg/tenants"
)

// fakeChurchService records calls and returns canned results.
type fakeChurchService struct {
	church  *tenants.Church
	members []*tenants.Member
	member  *tenants.Member
	err     error

	lastChurchID string
	lastUserID   string
	lastRole     string
	lastStatus   auth.ProfileStatus
	lastCreate   *tenants.CreateChurchRequest
	lastUpdate   *tenants.UpdateChurchRequest
}

func (f *fakeChurchService) CreateChurch(_ context.Context, _ *auth.Session, req *tenants.CreateChurchRequest) (*tenants.Church, error) {
	f.lastCreate = req
	return f.church, f.err
}

func (f *fakeChurchService) GetChurch(_ context.Context, id string) (*tenants.Church, error) {
	f.lastChurchID = id
	return f.church, f.err
}

func (f *fakeChurchService) ListChurches(_ context.Context, _ *auth.Session) ([]*tenants.Church, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*tenants.Church{f.church}, nil
}

func (f *fakeChurchService) UpdateChurch(_ context.Context, _ *auth.Session, churchID string, updates *tenants.UpdateChurchRequest) (*tenants.Church, error) {
	f.lastChurchID = churchID
	f.lastUpdate = updates
	return f.church, f.err
}

func (f *fakeChurchService) DeleteChurch(_ context.Context, _ *auth.Session, churchID string) error {
	f.lastChurchID = churchID
	return f.err
}

func (f *fakeChurchService) ListMembers(_ context.Context, _ *auth.Session, churchID string) ([]*tenants.Member, error) {
	f.lastChurchID = churchID
	return f.members, f.err
}

func (f *fakeChurchService) UpdateMemberRole(_ context.Context, _ *auth.Session, churchID, userID, requestedRole string) (*tenants.Member, error) {
	f.lastChurchID = churchID
	f.lastUserID = userID
	f.lastRole = requestedRole
	return f.member, f.err
}

func (f *fakeChurchService) UpdateMemberStatus(_ context.Context, _ *auth.Session, churchID, userID string, status auth.ProfileStatus) (*tenants.Member, error) {
	f.lastChurchID = churchID
	f.lastUserID = userID
	f.lastStatus = status
	return f.member, f.err
}

func (f *fakeChurchService) RemoveMember(_ context.Context, _ *auth.Session, churchID, userID string) error {
	f.lastChurchID = churchID
	f.lastUserID = userID
	return f.err
}

func newChurchRouter(svc ChurchService) *mux.Router {
	router := mux.NewRouter()
	NewChurchHandlers(svc).RegisterRoutes(router)
	return router
}

func adminSession() *auth.Session {
	churchID := "church-1"
	return &auth.Session{
		UserID:   "admin-1",
		Email:    "admin@first.church",
		ChurchID: &churchID,
		Role:     roles.RoleChurchAdmin,
	}
}

// serve routes a request through the handler set, optionally attaching
// a resolved session the way the boundary enforcer would.
func serve(router *mux.Router, session *auth.Session, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req = req.WithContext(contextkeys.WithSession(req.Context(), session))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateChurch(t *testing.T) {
	t.Run("creates church", func(t *testing.T) {
		svc := &fakeChurchService{church: &tenants.Church{ID: "church-1", Name: "First Church", DomainName: "first.church"}}
		router := newChurchRouter(svc)

		w := serve(router, adminSession(), "POST", "/churches", map[string]string{
			"name":        "First Church",
			"domain_name": "first.church",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		require.NotNil(t, svc.lastCreate)
		assert.Equal(t, "First Church", svc.lastCreate.Name)

		var got tenants.Church
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "church-1", got.ID)
	})

	t.Run("requires a session", func(t *testing.T) {
		svc := &fakeChurchService{}
		w := serve(newChurchRouter(svc), nil, "POST", "/churches", map[string]string{
			"name":        "First Church",
			"domain_name": "first.church",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, svc.lastCreate)
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		svc := &fakeChurchService{}
		w := serve(newChurchRouter(svc), adminSession(), "POST", "/churches", map[string]string{
			"domain_name": "not a hostname",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, svc.lastCreate)
	})

	t.Run("maps denial to forbidden", func(t *testing.T) {
		svc := &fakeChurchService{err: &authz.AuthorizationError{Reason: "role member cannot manage churches"}}
		w := serve(newChurchRouter(svc), adminSession(), "POST", "/churches", map[string]string{
			"name":        "First Church",
			"domain_name": "first.church",
		})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("maps duplicate domain to conflict", func(t *testing.T) {
		svc := &fakeChurchService{err: tenants.ErrDomainTaken}
		w := serve(newChurchRouter(svc), adminSession(), "POST", "/churches", map[string]string{
			"name":        "First Church",
			"domain_name": "first.church",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestGetChurch(t *testing.T) {
	t.Run("returns church", func(t *testing.T) {
		svc := &fakeChurchService{church: &tenants.Church{ID: "church-1", Name: "First Church"}}
		w := serve(newChurchRouter(svc), adminSession(), "GET", "/churches/church-1", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "church-1", svc.lastChurchID)
	})

	t.Run("maps missing church to not found", func(t *testing.T) {
		svc := &fakeChurchService{err: tenants.ErrChurchNotFound}
		w := serve(newChurchRouter(svc), adminSession(), "GET", "/churches/ghost", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateChurch(t *testing.T) {
	svc := &fakeChurchService{church: &tenants.Church{ID: "church-1", Name: "Renamed"}}
	w := serve(newChurchRouter(svc), adminSession(), "PUT", "/churches/church-1", map[string]string{
		"name": "Renamed",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastUpdate)
	require.NotNil(t, svc.lastUpdate.Name)
	assert.Equal(t, "Renamed", *svc.lastUpdate.Name)
}

func TestDeleteChurch(t *testing.T) {
	svc := &fakeChurchService{}
	w := serve(newChurchRouter(svc), adminSession(), "DELETE", "/churches/church-1", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "church-1", svc.lastChurchID)
}

func TestListChurches(t *testing.T) {
	t.Run("lists churches", func(t *testing.T) {
		svc := &fakeChurchService{church: &tenants.Church{ID: "church-1"}}
		w := serve(newChurchRouter(svc), adminSession(), "GET", "/churches", nil)

		require.Equal(t, http.StatusOK, w.Code)

		var got []*tenants.Church
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Len(t, got, 1)
	})

	t.Run("maps denial to forbidden", func(t *testing.T) {
		svc := &fakeChurchService{err: &authz.AuthorizationError{Reason: "only super admins list churches"}}
		w := serve(newChurchRouter(svc), adminSession(), "GET", "/churches", nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
