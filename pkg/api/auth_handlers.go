package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/httputil"
	"github.com/steeplehq/steeple/pkg/identity"
)

// AuthProvider is the sign-in flow surface against the external
// identity provider.
type AuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Principal, string, error)
}

// AuthHandlers drives the OIDC sign-in flow.
type AuthHandlers struct {
	provider     AuthProvider
	landingPath  string
	signInPath   string
	secureCookie bool
}

// NewAuthHandlers creates a new AuthHandlers.
func NewAuthHandlers(provider AuthProvider, landingPath, signInPath string, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{
		provider:     provider,
		landingPath:  landingPath,
		signInPath:   signInPath,
		secureCookie: secureCookie,
	}
}

// RegisterRoutes registers the sign-in flow routes.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("GET", "POST")
	router.HandleFunc("/auth/callback", h.Callback).Methods("GET")
	router.HandleFunc("/auth/logout", h.Logout).Methods("POST")
}

const stateCookie = "steeple_oauth_state"

// Login starts the authorization code flow.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the flow: it checks the state, exchanges the code
// and hands the ID token to the browser.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	_, rawIDToken, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		httputil.WriteUnauthorized(w, "sign-in failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     identity.TokenCookie,
		Value:    rawIDToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	// Expire the state cookie.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	http.Redirect(w, r, h.landingPath, http.StatusFound)
}

// Logout clears the token cookie.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.TokenCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.signInPath, http.StatusFound)
}
