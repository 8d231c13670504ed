package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore collects inserted entries, optionally failing every insert.
type memStore struct {
	entries []*Entry
	err     error
}

func (s *memStore) Insert(ctx context.Context, entry *Entry) error {
	if s.err != nil {
		return s.err
	}
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	return s.entries, nil
}

func (s *memStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestRecordUpdate(t *testing.T) {
	store := &memStore{}
	recorder := NewRecorder(store, nil)
	church := "c1"

	before := map[string]interface{}{"name": "A", "status": "active"}
	after := map[string]interface{}{"name": "B", "status": "active"}

	entry := recorder.Record(context.Background(), ActionUpdate, "profiles", "u2", "u1", &church, before, after)

	require.NotNil(t, entry)
	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, Changes{"name": {Old: "A", New: "B"}}, entry.Changes)
	assert.Equal(t, "u1", entry.ActorID)
	require.NotNil(t, entry.ChurchID)
	assert.Equal(t, "c1", *entry.ChurchID)
	require.Len(t, store.entries, 1)
}

func TestRecordInsert(t *testing.T) {
	store := &memStore{}
	recorder := NewRecorder(store, nil)

	after := map[string]interface{}{"name": "First Church", "domain_name": "first.example.com"}
	entry := recorder.Record(context.Background(), ActionCreate, "churches", "c1", "u1", nil, nil, after)

	assert.Equal(t, Changes{
		"name":        {New: "First Church"},
		"domain_name": {New: "first.example.com"},
	}, entry.Changes)
	assert.Nil(t, entry.ChurchID)
}

func TestRecordStoreFailureDoesNotPropagate(t *testing.T) {
	store := &memStore{err: fmt.Errorf("store outage")}
	fallback, hook := logrustest.NewNullLogger()
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_failures_total"})
	recorder := NewRecorder(store, fallback, WithFailureCounter(failures))

	// Must not panic, must not return an error path: the primary
	// mutation's caller only ever sees the entry.
	entry := recorder.Record(context.Background(), ActionUpdate, "profiles", "u2", "u1", nil,
		map[string]interface{}{"status": "active"},
		map[string]interface{}{"status": "inactive"})

	require.NotNil(t, entry)
	assert.Zero(t, entry.ID, "entry not persisted")
	assert.NotNil(t, entry.Changes, "diff still computed for the caller")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "audit write failed", hook.LastEntry().Message)
	assert.Equal(t, "profiles", hook.LastEntry().Data["table_name"])
}

func TestRecordDeletion(t *testing.T) {
	store := &memStore{}
	recorder := NewRecorder(store, nil)
	church := "c1"

	prior := map[string]interface{}{"name": "Old Church"}
	entry := recorder.RecordDeletion(context.Background(), "churches", "c1", "u1", &church, prior)

	assert.Equal(t, ActionDelete, entry.Action)
	assert.Equal(t, Changes{"name": {New: "Old Church"}}, entry.Changes)
}

func TestRecorderCustomExclusions(t *testing.T) {
	store := &memStore{}
	recorder := NewRecorder(store, nil, WithExcludedFields("sync_token"))

	after := map[string]interface{}{"name": "A", "sync_token": "t"}
	entry := recorder.Record(context.Background(), ActionCreate, "churches", "c1", "u1", nil, nil, after)

	assert.Contains(t, entry.Changes, "name")
	assert.NotContains(t, entry.Changes, "sync_token")
}

func TestRecordCountsWrites(t *testing.T) {
	store := &memStore{}
	writes := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_writes_total"})
	recorder := NewRecorder(store, nil, WithWriteCounter(writes))
	church := "c1"

	recorder.Record(context.Background(), ActionUpdate, "profiles", "u2", "u1", &church,
		map[string]interface{}{"role": "member"},
		map[string]interface{}{"role": "staff"})
	assert.Equal(t, 1.0, testutil.ToFloat64(writes))

	// A failed write counts as a failure, never as a write.
	store.err = fmt.Errorf("store outage")
	fallback, _ := logrustest.NewNullLogger()
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_failures_only"})
	recorder = NewRecorder(store, fallback, WithWriteCounter(writes), WithFailureCounter(failures))

	recorder.Record(context.Background(), ActionUpdate, "profiles", "u2", "u1", &church,
		map[string]interface{}{"role": "staff"},
		map[string]interface{}{"role": "member"})
	assert.Equal(t, 1.0, testutil.ToFloat64(writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(failures))
}
