package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Store persists and queries audit entries.
type Store interface {
	// Insert appends one entry and fills in its ID and CreatedAt.
	Insert(ctx context.Context, entry *Entry) error

	// Search returns entries matching the filter, newest first.
	Search(ctx context.Context, filter SearchFilter) ([]*Entry, error)

	// DeleteOlderThan removes entries created before the cutoff and
	// returns the number removed. Only the retention job calls this.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReplicaSource hands out pooled read connections, one per call.
type ReplicaSource interface {
	Replica() *sql.DB
}

// DBStore implements Store on PostgreSQL.
type DBStore struct {
	db       *sql.DB
	replicas ReplicaSource
}

// NewDBStore creates a database-backed audit store and ensures the
// audit_logs table exists.
func NewDBStore(db *sql.DB) (*DBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &DBStore{db: db}
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return store, nil
}

// WithReadReplicas routes Search through read replicas. Inserts and
// retention deletes stay on the primary.
func (s *DBStore) WithReadReplicas(replicas ReplicaSource) *DBStore {
	s.replicas = replicas
	return s
}

func (s *DBStore) reader() *sql.DB {
	if s.replicas != nil {
		return s.replicas.Replica()
	}
	return s.db
}

func (s *DBStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		action VARCHAR(50) NOT NULL,
		table_name VARCHAR(100) NOT NULL,
		record_id VARCHAR(255) NOT NULL,
		actor_id VARCHAR(255) NOT NULL,
		church_id VARCHAR(255),
		changes JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_church_id ON audit_logs(church_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_id ON audit_logs(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_record ON audit_logs(table_name, record_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// Insert appends one audit entry.
func (s *DBStore) Insert(ctx context.Context, entry *Entry) error {
	changesJSON, err := entry.MarshalChanges()
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (action, table_name, record_id, actor_id, church_id, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err = s.db.QueryRowContext(ctx, query,
		entry.Action, entry.TableName, entry.RecordID, entry.ActorID,
		entry.ChurchID, changesJSON, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Search returns entries matching the filter, newest first.
func (s *DBStore) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	query := `SELECT id, action, table_name, record_id, actor_id, church_id, changes, created_at FROM audit_logs WHERE 1=1`

	args := []interface{}{}
	argCount := 1

	if filter.ChurchID != nil {
		query += fmt.Sprintf(" AND church_id = $%d", argCount)
		args = append(args, *filter.ChurchID)
		argCount++
	}

	if filter.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, filter.ActorID)
		argCount++
	}

	if filter.TableName != "" {
		query += fmt.Sprintf(" AND table_name = $%d", argCount)
		args = append(args, filter.TableName)
		argCount++
	}

	if filter.RecordID != "" {
		query += fmt.Sprintf(" AND record_id = $%d", argCount)
		args = append(args, filter.RecordID)
		argCount++
	}

	if len(filter.Actions) > 0 {
		query += fmt.Sprintf(" AND action = ANY($%d)", argCount)
		actionStrs := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actionStrs[i] = string(a)
		}
		args = append(args, pq.Array(actionStrs))
		argCount++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.Since)
		argCount++
	}

	if filter.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.Until)
		argCount++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry := &Entry{}
		var changesJSON []byte

		if err := rows.Scan(
			&entry.ID, &entry.Action, &entry.TableName, &entry.RecordID,
			&entry.ActorID, &entry.ChurchID, &changesJSON, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &entry.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return entries, nil
}

// DeleteOlderThan removes entries created before the cutoff.
func (s *DBStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit logs: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return removed, nil
}
