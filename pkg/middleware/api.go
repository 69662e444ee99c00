package middleware

import (
	"net/http"
	"time"

	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/observability"
	"github.com/platinummonkey/dernek/pkg/ratelimit"
)

// APIOptions configures an API route
type APIOptions struct {
	// RateLimit is the policy of the route. The zero value selects the standard preset.
	RateLimit ratelimit.Config
	// ErrorMessage is the error title for failures that carry none
	ErrorMessage string
}

// ProtectedOptions configures a protected API route
type ProtectedOptions struct {
	APIOptions
	// Permissions must all be held by the caller's role
	Permissions []auth.Permission
}

// Middleware holds the collaborators shared by every route so routes are declared with options only
type Middleware struct {
	store      ratelimit.Store
	validator  Authenticator
	presets    ratelimit.Presets
	logger     *observability.Logger
	audit      audit.Logger
	metrics    *observability.Metrics
	otel       *observability.OTelMetrics
	trustProxy bool
	failClosed bool
	now        func() time.Time
}

// New creates the route middleware over a rate limit store and a token validator
func New(store ratelimit.Store, validator Authenticator, logger *observability.Logger) *Middleware {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Middleware{
		store:     store,
		validator: validator,
		presets:   ratelimit.DefaultPresets(),
		logger:    logger,
		now:       time.Now,
	}
}

// WithPresets replaces the built-in rate limit presets
func (m *Middleware) WithPresets(presets ratelimit.Presets) *Middleware {
	m.presets = presets
	return m
}

// WithAudit sets the audit logger for admission events
func (m *Middleware) WithAudit(logger audit.Logger) *Middleware {
	m.audit = logger
	return m
}

// WithMetrics enables Prometheus and OpenTelemetry recording. Either may be nil.
func (m *Middleware) WithMetrics(metrics *observability.Metrics, otel *observability.OTelMetrics) *Middleware {
	m.metrics = metrics
	m.otel = otel
	return m
}

// WithTrustProxy makes the limiter key clients by forwarding headers
func (m *Middleware) WithTrustProxy(trust bool) *Middleware {
	m.trustProxy = trust
	return m
}

// WithFailClosed makes the limiter reject requests while its store is failing
func (m *Middleware) WithFailClosed(failClosed bool) *Middleware {
	m.failClosed = failClosed
	return m
}

// WithClock overrides the clock used for Retry-After
func (m *Middleware) WithClock(now func() time.Time) *Middleware {
	if now != nil {
		m.now = now
	}
	return m
}

// Presets returns the rate limit presets routes choose from
func (m *Middleware) Presets() ratelimit.Presets {
	return m.presets
}

// WithAPIMiddleware rate limits the route and normalizes handler failures.
// No authentication is performed.
func (m *Middleware) WithAPIMiddleware(h HandlerFunc, opts APIOptions) http.Handler {
	return m.pipeline(opts, m.rateLimitStage(opts)).Handler(h)
}

// WithProtectedAPI rate limits, authenticates and authorizes before h runs.
// The limiter counts every request exactly once whatever the auth outcome.
func (m *Middleware) WithProtectedAPI(h ProtectedHandlerFunc, opts ProtectedOptions) http.Handler {
	return m.protected(opts).Handler(identityHandler(h))
}

// WithProtectedAPIParams is WithProtectedAPI for handlers that take the route parameters
func (m *Middleware) WithProtectedAPIParams(h ParamsHandlerFunc, opts ProtectedOptions) http.Handler {
	return m.protected(opts).Handler(identityHandler(withParams(h)))
}

func (m *Middleware) protected(opts ProtectedOptions) *Pipeline {
	return m.pipeline(opts.APIOptions,
		m.rateLimitStage(opts.APIOptions),
		NewAuthenticateStage(m.validator, m.logger, m.metrics),
		NewAuthorizeStage(opts.Permissions, m.logger, m.metrics),
	)
}

func (m *Middleware) pipeline(opts APIOptions, stages ...Stage) *Pipeline {
	p := NewPipeline(stages...).
		WithDefaultMessage(opts.ErrorMessage).
		WithLogger(m.logger).
		WithMetrics(m.metrics, m.otel)
	if m.audit != nil {
		p.WithAudit(m.audit)
	}
	return p
}

func (m *Middleware) rateLimitStage(opts APIOptions) *RateLimitStage {
	cfg := opts.RateLimit
	if cfg.Limit == 0 && cfg.Window == 0 {
		cfg = m.presets.Standard
	}
	return NewRateLimitStage(m.store, cfg,
		TrustProxy(m.trustProxy),
		FailClosed(m.failClosed),
		RateLimitClock(m.now),
		RateLimitLogger(m.logger),
	)
}
