package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/steeplehq/steeple/pkg/auth"
)

// Config holds the OIDC provider settings.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Verifier turns a raw ID token into a verified principal.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*auth.Principal, error)
}

// OIDCVerifier verifies ID tokens against a discovered OIDC provider.
type OIDCVerifier struct {
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCVerifier discovers the provider and builds the token verifier.
func NewOIDCVerifier(ctx context.Context, config *Config) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &OIDCVerifier{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
		},
	}, nil
}

// Verify validates the raw ID token and extracts the principal.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*auth.Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &auth.Principal{
		ID:    idToken.Subject,
		Email: claims.Email,
	}, nil
}

// AuthCodeURL returns the provider's authorization URL for the login
// redirect.
func (v *OIDCVerifier) AuthCodeURL(state string) string {
	return v.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a verified principal plus
// the raw ID token to hand back to the client.
func (v *OIDCVerifier) Exchange(ctx context.Context, code string) (*auth.Principal, string, error) {
	oauth2Token, err := v.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, "", fmt.Errorf("missing id_token in response")
	}

	principal, err := v.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", err
	}

	return principal, rawIDToken, nil
}
