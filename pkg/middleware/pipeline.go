package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/contextkeys"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/observability"
)

// DefaultErrorMessage is the error title used when a handler failure carries no better one
const DefaultErrorMessage = "İşlem başarısız"

// HandlerFunc is an API handler. A returned error is normalized into the error envelope.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ProtectedHandlerFunc is an API handler that runs for an authenticated identity
type ProtectedHandlerFunc func(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error

// ParamsHandlerFunc is a ProtectedHandlerFunc that also receives the route parameters
type ParamsHandlerFunc func(w http.ResponseWriter, r *http.Request, identity *auth.Identity, params map[string]string) error

// Stage is one admission guard.
//
// Admit returns the request to hand to the next stage, usually with an
// enriched context, or an error that stops the pipeline. Stages may set
// response headers but never write a body.
type Stage interface {
	Name() string
	Admit(w http.ResponseWriter, r *http.Request) (*http.Request, error)
}

// StageFunc adapts a function to the Stage interface
type StageFunc struct {
	StageName string
	Fn        func(w http.ResponseWriter, r *http.Request) (*http.Request, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Admit(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	return s.Fn(w, r)
}

// Pipeline evaluates its stages in order with early exit, then runs the
// handler inside a failure boundary. Stage rejections, handler errors and
// handler panics all leave as a normalized error envelope.
type Pipeline struct {
	stages         []Stage
	defaultMessage string
	logger         *observability.Logger
	audit          audit.Logger
	metrics        *observability.Metrics
	otel           *observability.OTelMetrics
}

// NewPipeline creates a pipeline over stages, outermost first
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{
		stages:         stages,
		defaultMessage: DefaultErrorMessage,
		logger:         observability.NewNopLogger(),
	}
}

// WithDefaultMessage sets the error title for failures that carry none
func (p *Pipeline) WithDefaultMessage(msg string) *Pipeline {
	if msg != "" {
		p.defaultMessage = msg
	}
	return p
}

// WithLogger sets the logger used when no request-scoped logger exists
func (p *Pipeline) WithLogger(logger *observability.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithAudit puts the audit logger into every request context
func (p *Pipeline) WithAudit(logger audit.Logger) *Pipeline {
	p.audit = logger
	return p
}

// WithMetrics enables Prometheus and OpenTelemetry recording. Either may be nil.
func (p *Pipeline) WithMetrics(metrics *observability.Metrics, otel *observability.OTelMetrics) *Pipeline {
	p.metrics = metrics
	p.otel = otel
	return p
}

// Stages returns the stage names in evaluation order
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Handler wraps h with the pipeline
func (p *Pipeline) Handler(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if p.audit != nil {
			ctx = audit.WithLogger(ctx, p.audit)
			r = r.WithContext(ctx)
		}

		for _, stage := range p.stages {
			next, err := stage.Admit(w, r)
			if err != nil {
				p.otel.RecordAdmission(ctx, stage.Name(), "rejected")
				p.reject(w, r, stage.Name(), err)
				return
			}
			p.otel.RecordAdmission(ctx, stage.Name(), "admitted")
			if next != nil {
				r = next
			}
		}

		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		failure := p.invoke(h, sw, r)
		if failure != nil {
			p.fail(sw, r, failure)
		}
		p.otel.RecordHandler(r.Context(), routeTemplate(r), sw.status(), time.Since(start))
	})
}

// invoke runs h and turns a panic into a failure value
func (p *Pipeline) invoke(h HandlerFunc, w http.ResponseWriter, r *http.Request) (failure interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			observability.LogPanic(p.loggerFor(r.Context()), rec, r.Method+" "+r.URL.Path)
			p.metrics.RecordPanic()
			failure = recovered{value: rec}
		}
	}()

	if err := h(w, r); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) reject(w http.ResponseWriter, r *http.Request, stage string, err error) {
	status, resp := httputil.ToErrorResponse(err, p.defaultMessage, http.StatusInternalServerError)
	logger := p.loggerFor(r.Context()).WithFields(map[string]interface{}{
		"stage":  stage,
		"status": status,
		"code":   resp.Code,
	})
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("request rejected")
	} else {
		logger.Debug("request rejected")
	}
	_ = httputil.WriteErrorResponse(w, status, resp)
}

func (p *Pipeline) fail(w *statusWriter, r *http.Request, failure interface{}) {
	status, resp := httputil.ToErrorResponse(failure, p.defaultMessage, http.StatusInternalServerError)
	p.metrics.RecordHandlerError(resp.Code)

	logger := p.loggerFor(r.Context()).WithFields(map[string]interface{}{
		"status": status,
		"code":   resp.Code,
	})
	if err, ok := failure.(error); ok {
		logger = logger.WithError(err)
	}
	if status >= http.StatusInternalServerError {
		logger.Errorf("API Error [%s %s]", r.Method, r.URL.Path)
	} else {
		logger.Warnf("API Error [%s %s]", r.Method, r.URL.Path)
	}

	if w.wroteHeader {
		// the handler already committed a response, the envelope cannot follow
		return
	}
	_ = httputil.WriteErrorResponse(w, status, resp)
}

func (p *Pipeline) loggerFor(ctx context.Context) *observability.Logger {
	if _, ok := ctx.Value(contextkeys.LoggerKey).(*observability.Logger); ok {
		return observability.FromContext(ctx)
	}
	return p.logger
}

// recovered wraps a panic value. It is never an error, so it normalizes to UNKNOWN_ERROR.
type recovered struct {
	value interface{}
}

// IdentityFromContext returns the identity stored by the authentication stage
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
	return identity, ok && identity != nil
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusWriter records whether and with which status the handler responded
type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) status() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.code
}
