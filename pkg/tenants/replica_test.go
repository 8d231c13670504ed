package tenants

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeplehq/steeple/pkg/audit"
)

type staticReplica struct {
	db *sql.DB
}

func (r *staticReplica) Replica() *sql.DB { return r.db }

func newReplicatedService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()
	primary, primaryMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { primary.Close() })

	replica, replicaMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { replica.Close() })

	service := NewPostgresService(primary, audit.NewRecorder(&captureAuditStore{}, nil)).
		WithReadReplicas(&staticReplica{db: replica})
	return service, primaryMock, replicaMock
}

func TestListMembersReadsReplica(t *testing.T) {
	service, primaryMock, replicaMock := newReplicatedService(t)

	now := time.Now()
	replicaMock.ExpectQuery(`FROM profiles`).
		WithArgs("church-1").
		WillReturnRows(memberRow("u1", "church-1", "member", now))

	members, err := service.ListMembers(context.Background(), churchAdminSession("church-1"), "church-1")
	require.NoError(t, err)
	require.Len(t, members, 1)

	assert.NoError(t, replicaMock.ExpectationsWereMet())
	assert.NoError(t, primaryMock.ExpectationsWereMet())
}

func TestDomainLookupReadsReplica(t *testing.T) {
	service, primaryMock, replicaMock := newReplicatedService(t)

	now := time.Now()
	replicaMock.ExpectQuery(`FROM churches`).
		WithArgs("grace.example.org").
		WillReturnRows(churchRow("church-1", "Grace Chapel", "grace.example.org", now))

	church, err := service.GetChurchByDomain(context.Background(), "Grace.Example.Org")
	require.NoError(t, err)
	assert.Equal(t, "church-1", church.ID)

	assert.NoError(t, replicaMock.ExpectationsWereMet())
	assert.NoError(t, primaryMock.ExpectationsWereMet())
}

func TestGetChurchStaysOnPrimary(t *testing.T) {
	service, primaryMock, replicaMock := newReplicatedService(t)

	now := time.Now()
	primaryMock.ExpectQuery(`FROM churches`).
		WithArgs("church-1").
		WillReturnRows(churchRow("church-1", "Grace Chapel", "grace.example.org", now))

	_, err := service.GetChurch(context.Background(), "church-1")
	require.NoError(t, err)

	// Snapshot reads around mutations must never see replica lag.
	assert.NoError(t, primaryMock.ExpectationsWereMet())
	assert.NoError(t, replicaMock.ExpectationsWereMet())
}

func TestProfileLoadStaysOnPrimary(t *testing.T) {
	service, primaryMock, replicaMock := newReplicatedService(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"user_id", "church_id", "role", "status", "display_name",
		"avatar_url", "email", "last_active_at", "created_at", "updated_at",
	}).AddRow("u1", "church-1", "member", "active", "Pat", "", "pat@example.org", now, now, now)
	primaryMock.ExpectQuery(`FROM profiles`).WithArgs("u1").WillReturnRows(rows)

	_, err := service.GetProfile(context.Background(), "u1")
	require.NoError(t, err)

	// A revoked role takes effect on the next request; replica lag
	// must not extend a session's privileges.
	assert.NoError(t, primaryMock.ExpectationsWereMet())
	assert.NoError(t, replicaMock.ExpectationsWereMet())
}
