package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}

		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.HTTPRequestDuration == nil {
			t.Error("HTTPRequestDuration is nil")
		}
		if metrics.AuthzDenialsTotal == nil {
			t.Error("AuthzDenialsTotal is nil")
		}
		if metrics.BoundaryRedirects == nil {
			t.Error("BoundaryRedirects is nil")
		}
		if metrics.SessionResolutions == nil {
			t.Error("SessionResolutions is nil")
		}
		if metrics.SignInThrottledTotal == nil {
			t.Error("SignInThrottledTotal is nil")
		}
		if metrics.AuditWritesTotal == nil {
			t.Error("AuditWritesTotal is nil")
		}
		if metrics.AuditWriteFailures == nil {
			t.Error("AuditWriteFailures is nil")
		}
		if metrics.DBConnectionsActive == nil {
			t.Error("DBConnectionsActive is nil")
		}
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic on duplicate registration")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AuthzDenialsTotal.WithLabelValues("church_access").Inc()
	metrics.AuthzDenialsTotal.WithLabelValues("church_access").Inc()
	metrics.AuditWriteFailures.Inc()

	if got := testutil.ToFloat64(metrics.AuthzDenialsTotal.WithLabelValues("church_access")); got != 2 {
		t.Errorf("AuthzDenialsTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.AuditWriteFailures); got != 1 {
		t.Errorf("AuditWriteFailures = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/churches/c1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/churches/c1", "404"))
	if count != 1 {
		t.Errorf("HTTPRequestsTotal = %v, want 1", count)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.AuditWritesTotal.Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "steeple_audit_writes_total") {
		t.Error("metrics output missing steeple_audit_writes_total")
	}
}
