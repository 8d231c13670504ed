package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/steeplehq/steeple/pkg/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProfileStore counts lookups so tests can assert memoization.
type fakeProfileStore struct {
	profiles map[string]*Profile
	err      error
	calls    int
}

func (f *fakeProfileStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func churchID(id string) *string { return &id }

func TestResolve(t *testing.T) {
	store := &fakeProfileStore{profiles: map[string]*Profile{
		"u1": {
			UserID:      "u1",
			ChurchID:    churchID("c1"),
			Role:        roles.StorageChurchAdmin,
			Status:      StatusActive,
			DisplayName: "Pat",
			AvatarURL:   "https://cdn.example.com/pat.png",
		},
	}}
	resolver := NewResolver(store)

	session, err := resolver.Resolve(context.Background(), &Principal{ID: "u1", Email: "pat@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "pat@example.com", session.Email)
	assert.Equal(t, roles.RoleChurchAdmin, session.Role)
	require.NotNil(t, session.ChurchID)
	assert.Equal(t, "c1", *session.ChurchID)
	assert.Equal(t, "Pat", session.DisplayName)
}

func TestResolveNoPrincipal(t *testing.T) {
	resolver := NewResolver(&fakeProfileStore{})

	_, err := resolver.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = resolver.Resolve(context.Background(), &Principal{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestResolveProfileNotFound(t *testing.T) {
	resolver := NewResolver(&fakeProfileStore{profiles: map[string]*Profile{}})

	_, err := resolver.Resolve(context.Background(), &Principal{ID: "ghost"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestResolveStoreError(t *testing.T) {
	resolver := NewResolver(&fakeProfileStore{err: fmt.Errorf("connection refused")})

	_, err := resolver.Resolve(context.Background(), &Principal{ID: "u1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAuthenticated)
}

func TestResolveUnknownStorageRoleDegrades(t *testing.T) {
	store := &fakeProfileStore{profiles: map[string]*Profile{
		"u1": {UserID: "u1", Role: roles.StorageRole("deacon"), Status: StatusActive},
	}}
	resolver := NewResolver(store)

	session, err := resolver.Resolve(context.Background(), &Principal{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, roles.RoleVisitor, session.Role)
	assert.Nil(t, session.ChurchID)
}

func TestResolveMemoizesPerRequest(t *testing.T) {
	store := &fakeProfileStore{profiles: map[string]*Profile{
		"u1": {UserID: "u1", Role: roles.StorageStaff, Status: StatusActive},
	}}
	resolver := NewResolver(store)
	ctx := WithSessionCache(context.Background())

	first, err := resolver.Resolve(ctx, &Principal{ID: "u1"})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := resolver.Resolve(ctx, &Principal{ID: "u1"})
		require.NoError(t, err)
		assert.Same(t, first, again)
	}
	assert.Equal(t, 1, store.calls, "one profile lookup per request")
}

func TestResolveCacheDoesNotLeakAcrossRequests(t *testing.T) {
	store := &fakeProfileStore{profiles: map[string]*Profile{
		"u1": {UserID: "u1", Role: roles.StorageStaff, Status: StatusActive},
	}}
	resolver := NewResolver(store)

	// Two separate requests, two separate caches.
	_, err := resolver.Resolve(WithSessionCache(context.Background()), &Principal{ID: "u1"})
	require.NoError(t, err)
	_, err = resolver.Resolve(WithSessionCache(context.Background()), &Principal{ID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls)
}

func TestResolveWithoutCacheStillWorks(t *testing.T) {
	store := &fakeProfileStore{profiles: map[string]*Profile{
		"u1": {UserID: "u1", Role: roles.StorageMember, Status: StatusActive},
	}}
	resolver := NewResolver(store)

	session, err := resolver.Resolve(context.Background(), &Principal{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, roles.RoleMember, session.Role)
}
