package audit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Recorder builds and persists audit entries for completed mutations.
type Recorder struct {
	store    Store
	fallback *logrus.Logger
	exclude  map[string]struct{}
	writes   prometheus.Counter
	failures prometheus.Counter
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithExcludedFields overrides the bookkeeping fields omitted from
// recorded diffs.
func WithExcludedFields(fields ...string) RecorderOption {
	return func(r *Recorder) {
		set := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			set[f] = struct{}{}
		}
		r.exclude = set
	}
}

// WithWriteCounter attaches a counter incremented for every persisted
// audit entry.
func WithWriteCounter(c prometheus.Counter) RecorderOption {
	return func(r *Recorder) {
		r.writes = c
	}
}

// WithFailureCounter attaches a counter incremented whenever an audit
// write fails.
func WithFailureCounter(c prometheus.Counter) RecorderOption {
	return func(r *Recorder) {
		r.failures = c
	}
}

// NewRecorder creates a recorder. fallback receives a structured log
// line whenever the store rejects a write, so trail gaps are at least
// observable; pass nil to use the standard logrus logger.
func NewRecorder(store Store, fallback *logrus.Logger, opts ...RecorderOption) *Recorder {
	if fallback == nil {
		fallback = logrus.StandardLogger()
	}
	r := &Recorder{
		store:    store,
		fallback: fallback,
		exclude:  DefaultExcludedFields(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record computes the field diff between before and after and appends
// an audit entry. before nil means an insert. churchID nil means a
// church-agnostic mutation.
//
// Failure to persist the entry does not propagate: the primary
// mutation already succeeded and its caller must see success. The
// failure goes to the fallback channel and the failure counter
// instead. The returned entry always carries the computed diff; its ID
// is zero when the write failed.
func (r *Recorder) Record(ctx context.Context, action Action, tableName, recordID, actorID string, churchID *string, before, after map[string]interface{}) *Entry {
	entry := &Entry{
		Action:    action,
		TableName: tableName,
		RecordID:  recordID,
		ActorID:   actorID,
		ChurchID:  churchID,
		Changes:   ComputeDiff(before, after, r.exclude),
		CreatedAt: time.Now().UTC(),
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		r.fallback.WithFields(logrus.Fields{
			"action":     action,
			"table_name": tableName,
			"record_id":  recordID,
			"actor_id":   actorID,
		}).WithError(err).Error("audit write failed")
		if r.failures != nil {
			r.failures.Inc()
		}
		return entry
	}

	if r.writes != nil {
		r.writes.Inc()
	}
	return entry
}

// RecordDeletion appends a delete entry. The prior state is recorded
// as an insert-style diff so the viewer can show what was removed.
func (r *Recorder) RecordDeletion(ctx context.Context, tableName, recordID, actorID string, churchID *string, prior map[string]interface{}) *Entry {
	return r.Record(ctx, ActionDelete, tableName, recordID, actorID, churchID, nil, prior)
}
