package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/steeplehq/steeple/pkg/observability"
)

// ConnectionManager manages the primary PostgreSQL connection and any
// read replicas. Writes always go to the primary; read-only paths may
// take a replica via Replica(), which round-robins and falls back to
// the primary when no replica is configured.
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*sql.DB
	current  uint32
}

// NewConnectionManager opens and verifies the configured connections.
// Replica failures are logged and skipped; only the primary is
// required.
func NewConnectionManager(cfg Config, logger *observability.Logger) (*ConnectionManager, error) {
	primary, err := open(cfg, cfg.PostgresURL, cfg.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}

	cm := &ConnectionManager{primary: primary}

	for i, url := range cfg.ReplicaURLs {
		// Replicas get a smaller slice of the pool budget.
		maxConns := cfg.MaxConns / 2
		if maxConns < 2 {
			maxConns = 2
		}
		replica, err := open(cfg, url, maxConns)
		if err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("skipping unreachable replica %d", i)
			}
			continue
		}
		cm.replicas = append(cm.replicas, replica)
	}

	return cm, nil
}

func open(cfg Config, url string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	timeout := cfg.ConnTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return db, nil
}

// Primary returns the writable connection.
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns the next read replica, or the primary when none are
// configured.
func (cm *ConnectionManager) Replica() *sql.DB {
	if len(cm.replicas) == 0 {
		return cm.primary
	}
	n := atomic.AddUint32(&cm.current, 1)
	return cm.replicas[int(n-1)%len(cm.replicas)]
}

// HealthCheck pings the primary and every replica.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}
	for i, replica := range cm.replicas {
		if err := replica.PingContext(ctx); err != nil {
			return fmt.Errorf("replica %d unhealthy: %w", i, err)
		}
	}
	return nil
}

// Close closes all managed connections, returning the first error.
func (cm *ConnectionManager) Close() error {
	var firstErr error
	if err := cm.primary.Close(); err != nil {
		firstErr = err
	}
	for _, replica := range cm.replicas {
		if err := replica.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
