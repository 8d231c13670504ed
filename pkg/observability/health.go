package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// Version is stamped at build time via -ldflags and reported by the
// readiness probe.
var Version = "dev"

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker probes the dependencies the server needs: PostgreSQL
// (required) and Redis (optional; used by the sign-in throttle and the
// church cache, both of which degrade without it).
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker creates a checker. redis may be nil when the
// deployment runs without it.
func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// HealthStatus is the readiness probe response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	CheckedAt time.Time              `json:"checked_at"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult reports one dependency probe.
type CheckResult struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Liveness reports that the process is up. It never touches a
// dependency: a wedged database must not get the pod restarted.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     StatusHealthy,
		"checked_at": time.Now().UTC(),
	})
}

// Readiness probes every dependency. Postgres down means unhealthy
// (503); Redis down means degraded (200), since the server keeps
// serving without it.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check probes all configured dependencies and aggregates the result.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Version:   Version,
		CheckedAt: time.Now().UTC(),
		Checks:    make(map[string]CheckResult),
	}

	if h.db != nil {
		result := h.checkPostgres(ctx)
		status.Checks["postgres"] = result
		if result.Status != StatusHealthy {
			status.Status = result.Status
		}
	}

	if h.redis != nil {
		result := h.checkRedis(ctx)
		status.Checks["redis"] = result
		// Redis is optional: its outage never makes the pod unhealthy.
		if result.Status == StatusUnhealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) checkPostgres(ctx context.Context) CheckResult {
	start := time.Now()

	if err := h.db.PingContext(ctx); err != nil {
		return CheckResult{
			Status:    StatusUnhealthy,
			Detail:    err.Error(),
			LatencyMS: time.Since(start).Milliseconds(),
		}
	}

	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return CheckResult{
			Status:    StatusUnhealthy,
			Detail:    "query failed: " + err.Error(),
			LatencyMS: time.Since(start).Milliseconds(),
		}
	}

	result := CheckResult{
		Status:    StatusHealthy,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if stats := h.db.Stats(); stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		result.Status = StatusDegraded
		result.Detail = "connection pool exhausted"
	}
	return result
}

func (h *HealthChecker) checkRedis(ctx context.Context) CheckResult {
	start := time.Now()

	if err := h.redis.Ping(ctx).Err(); err != nil {
		return CheckResult{
			Status:    StatusUnhealthy,
			Detail:    err.Error(),
			LatencyMS: time.Since(start).Milliseconds(),
		}
	}
	return CheckResult{
		Status:    StatusHealthy,
		LatencyMS: time.Since(start).Milliseconds(),
	}
}

// RegisterHealthRoutes mounts the probes on the admin mux.
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
}
