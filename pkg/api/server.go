package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/dernek/pkg/apierror"
	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/middleware"
	"github.com/platinummonkey/dernek/pkg/observability"
	"github.com/platinummonkey/dernek/pkg/ratelimit"
	"github.com/platinummonkey/dernek/pkg/storage"
)

// Records is the persistence a resource route needs
type Records interface {
	List(ctx context.Context, q storage.ListQuery) ([]storage.Record, int, error)
	Get(ctx context.Context, id int64) (storage.Record, error)
	Insert(ctx context.Context, values storage.Record) (storage.Record, error)
	Update(ctx context.Context, id int64, values storage.Record) (storage.Record, error)
	Delete(ctx context.Context, id int64) error
}

// Documents stores uploaded files
type Documents interface {
	Upload(ctx context.Context, in storage.Upload) (storage.Record, error)
	List(ctx context.Context, beneficiaryID string) ([]storage.Record, error)
}

// UserDirectory lists panel users
type UserDirectory interface {
	ListUsers(ctx context.Context, limit, offset int) ([]auth.UserRecord, int, error)
}

// UserCache drops cached user records so the next request reads the stored role
type UserCache interface {
	Invalidate(id string)
}

// SessionIssuer signs users in and renews sessions
type SessionIssuer interface {
	SignIn(ctx context.Context, email, password string) (*auth.UserRecord, *auth.Session, error)
	Refresh(refreshToken string) (*auth.Session, error)
}

// CookieConfig controls the session cookies set by login and refresh
type CookieConfig struct {
	AccessName  string
	RefreshName string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	// Secure marks cookies HTTPS-only, set in production
	Secure bool
}

// Deps are the collaborators of the API server. Nil stores leave their routes unregistered.
type Deps struct {
	Middleware *middleware.Middleware
	Sessions   SessionIssuer
	Users      UserDirectory
	Members    Records
	Donations  Records
	SocialAid  Records
	Documents  Documents
	// UserCache, when set, is refreshed for a user on every successful login
	UserCache  UserCache

	Logger   *observability.Logger
	Audit    audit.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Health   *observability.HealthChecker

	Cookies        CookieConfig
	CORS           httputil.CORSOptions
	AuditAll       bool
	MaxUploadBytes int64
}

// Server represents our API server
type Server struct {
	deps   Deps
	mw     *middleware.Middleware
	router *mux.Router
	logger *observability.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewNopLogger()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NoOp()
	}
	if deps.Cookies.AccessName == "" {
		deps.Cookies.AccessName = auth.AccessTokenCookie
	}
	if deps.Cookies.RefreshName == "" {
		deps.Cookies.RefreshName = auth.RefreshTokenCookie
	}
	if deps.Cookies.AccessTTL <= 0 {
		deps.Cookies.AccessTTL = auth.DefaultAccessTTL
	}
	if deps.Cookies.RefreshTTL <= 0 {
		deps.Cookies.RefreshTTL = auth.DefaultRefreshTTL
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		deps:   deps,
		mw:     deps.Middleware,
		router: mux.NewRouter(),
		logger: deps.Logger,
	}
	s.setupRoutes()
	return s
}

// Router returns the route table without instrumentation
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped in OpenTelemetry server instrumentation
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "dernek-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					return r.Method + " " + tpl
				}
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}

// OpsHandler serves only the probe and metrics endpoints, for the separate health port
func (s *Server) OpsHandler() http.Handler {
	ops := mux.NewRouter()
	ops.HandleFunc("/healthz", s.liveness).Methods(http.MethodGet)
	ops.HandleFunc("/readyz", s.readiness).Methods(http.MethodGet)
	if s.deps.Gatherer != nil {
		ops.Handle("/metrics", observability.MetricsHandler(s.deps.Gatherer)).Methods(http.MethodGet)
	}
	return ops
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, apierror.NotFound("Kaynak bulunamadı"), middleware.DefaultErrorMessage)
	})

	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.CORSMiddleware(s.deps.CORS),
		audit.NewMiddleware(s.deps.Audit, s.deps.AuditAll).Handler,
	)
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}

	s.router.HandleFunc("/healthz", s.liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.readiness).Methods(http.MethodGet)
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Gatherer)).Methods(http.MethodGet)
	}

	apiRouter := s.router.PathPrefix("/api").Subrouter()

	s.registerAuthRoutes(apiRouter)
	s.registerResourceRoutes(apiRouter)
	s.registerDocumentRoutes(apiRouter)
	s.registerUserRoutes(apiRouter)
}

// methods dispatches on the request method. Other methods get a 405 envelope with Allow set.
type methods map[string]http.Handler

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h.ServeHTTP(w, r)
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	allowed := make([]string, 0, len(m))
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if _, ok := m[method]; ok {
			allowed = append(allowed, method)
		}
	}
	httputil.WriteError(w, httputil.ValidateMethod(w, r, allowed...), middleware.DefaultErrorMessage)
}

func (s *Server) api(h middleware.HandlerFunc, message string, preset string) http.Handler {
	return s.mw.WithAPIMiddleware(h, middleware.APIOptions{
		RateLimit:    s.preset(preset),
		ErrorMessage: message,
	})
}

func (s *Server) protectedOptions(message, preset string, perms ...auth.Permission) middleware.ProtectedOptions {
	return middleware.ProtectedOptions{
		APIOptions:  middleware.APIOptions{RateLimit: s.preset(preset), ErrorMessage: message},
		Permissions: perms,
	}
}

func (s *Server) preset(name string) ratelimit.Config {
	cfg, _ := s.mw.Presets().Lookup(name)
	return cfg
}
