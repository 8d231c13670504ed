package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/steeplehq/steeple/pkg/httputil"
	"github.com/steeplehq/steeple/pkg/middleware"
	"github.com/steeplehq/steeple/pkg/observability"
)

// maxRequestBody caps request bodies; no handler accepts uploads.
const maxRequestBody = 1 << 20

// ServerConfig carries the wiring for the HTTP server.
type ServerConfig struct {
	Churches     ChurchService
	Audit        AuditSearcher
	AuthProvider AuthProvider

	Identity func(http.Handler) http.Handler
	Enforcer *middleware.Enforcer
	Throttle *middleware.SignInThrottle

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Health  *observability.HealthChecker

	AllowedOrigins []string
	LandingPath    string
	SignInPath     string
	SecureCookies  bool
}

// Server is the assembled HTTP surface.
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer builds the router and middleware chain. The order matters:
// identity runs before the enforcer so the enforcer sees the verified
// principal, and the enforcer runs before any handler so no handler
// ever executes without its boundary checks.
func NewServer(cfg ServerConfig) *Server {
	router := mux.NewRouter()

	NewChurchHandlers(cfg.Churches).RegisterRoutes(router.PathPrefix("/api").Subrouter())
	NewAuditHandlers(cfg.Audit).RegisterRoutes(router.PathPrefix("/api").Subrouter())
	if cfg.AuthProvider != nil {
		NewAuthHandlers(cfg.AuthProvider, cfg.LandingPath, cfg.SignInPath, cfg.SecureCookies).RegisterRoutes(router)
	}

	if cfg.Health != nil {
		router.HandleFunc("/healthz", cfg.Health.Liveness).Methods("GET")
		router.HandleFunc("/readyz", cfg.Health.Readiness).Methods("GET")
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
	}
	if cfg.Logger != nil {
		chain = append(chain, middleware.RequestLogger(cfg.Logger))
	}
	chain = append(chain, httputil.RecoveryMiddleware)
	chain = append(chain, httputil.MaxBytesMiddleware(maxRequestBody))
	if cfg.Metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(cfg.Metrics))
	}
	if len(cfg.AllowedOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(cfg.AllowedOrigins))
	}
	if cfg.Throttle != nil {
		chain = append(chain, cfg.Throttle.Handler)
	}
	if cfg.Identity != nil {
		chain = append(chain, cfg.Identity)
	}
	if cfg.Enforcer != nil {
		chain = append(chain, cfg.Enforcer.Handler)
	}

	var handler http.Handler = router
	handler = httputil.Chain(chain...)(handler)
	handler = otelhttp.NewHandler(handler, "steeple")

	return &Server{
		router:  router,
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Router exposes the underlying router for additional registrations.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
