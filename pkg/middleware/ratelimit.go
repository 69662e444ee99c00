package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/platinummonkey/dernek/pkg/apierror"
	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/observability"
	"github.com/platinummonkey/dernek/pkg/ratelimit"
)

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// CodeRateLimitUnavailable is returned when the store fails and the limiter fails closed
const CodeRateLimitUnavailable = "RATE_LIMIT_UNAVAILABLE"

// RateLimitStage admits requests while the client is under the policy limit
type RateLimitStage struct {
	store      ratelimit.Store
	config     ratelimit.Config
	trustProxy bool
	failClosed bool
	now        func() time.Time
	logger     *observability.Logger
}

// RateLimitOption configures a RateLimitStage
type RateLimitOption func(*RateLimitStage)

// TrustProxy derives client keys from forwarding headers
func TrustProxy(trust bool) RateLimitOption {
	return func(s *RateLimitStage) { s.trustProxy = trust }
}

// FailClosed rejects requests with 503 when the store errors instead of admitting them
func FailClosed(failClosed bool) RateLimitOption {
	return func(s *RateLimitStage) { s.failClosed = failClosed }
}

// RateLimitClock overrides the clock used for Retry-After
func RateLimitClock(now func() time.Time) RateLimitOption {
	return func(s *RateLimitStage) {
		if now != nil {
			s.now = now
		}
	}
}

// RateLimitLogger sets the logger for store failures
func RateLimitLogger(logger *observability.Logger) RateLimitOption {
	return func(s *RateLimitStage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRateLimitStage creates a stage counting requests in store under cfg
func NewRateLimitStage(store ratelimit.Store, cfg ratelimit.Config, opts ...RateLimitOption) *RateLimitStage {
	s := &RateLimitStage{
		store:  store,
		config: cfg,
		now:    time.Now,
		logger: observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RateLimitStage) Name() string { return "ratelimit" }

// Key returns the accounting key of r. Policies never share a counter.
func (s *RateLimitStage) Key(r *http.Request) string {
	return s.config.Name + ":" + ratelimit.ClientKey(r, s.trustProxy)
}

// Admit counts r and rejects it once the window is exhausted.
// The limit headers are set on every counted request, admitted or not.
func (s *RateLimitStage) Admit(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	key := s.Key(r)
	res, err := s.store.Check(r.Context(), key, s.config)
	if err != nil {
		logger := s.logger.WithError(err).WithFields(map[string]interface{}{
			"policy":      s.config.Name,
			"fail_closed": s.failClosed,
		})
		if s.failClosed {
			logger.Error("rate limit store unavailable, rejecting request")
			unavailable := apierror.Unavailable("Hız sınırı servisi kullanılamıyor", CodeRateLimitUnavailable)
			unavailable.Err = err
			return nil, unavailable
		}
		logger.Warn("rate limit store unavailable, admitting request")
		return r, nil
	}

	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	h.Set(HeaderRateLimitReset, res.ResetHeader())

	if !res.Limited {
		return r, nil
	}

	h.Set(HeaderRetryAfter, strconv.Itoa(res.RetryAfter(s.now())))

	event := audit.NewEvent(r, audit.EventTypeRateLimitExceeded, audit.EventStatusDenied).
		WithResource(audit.ResourceTypeEndpoint, r.URL.Path)
	event.StatusCode = http.StatusTooManyRequests
	event.Metadata = map[string]interface{}{
		"policy":     s.config.Name,
		"limit":      res.Limit,
		"reset_time": res.ResetHeader(),
	}
	logAudit(r, s.logger, event)

	return nil, apierror.RateLimitExceeded().WithDetails(map[string]string{
		"resetTime": res.ResetHeader(),
	})
}

// logAudit writes event to the request's audit logger. Audit failures never fail the request.
func logAudit(r *http.Request, logger *observability.Logger, event *audit.Event) {
	if err := audit.FromContext(r.Context()).Log(r.Context(), event); err != nil {
		logger.WithError(err).WithField("event_type", string(event.EventType)).Warn("failed to write audit event")
	}
}
