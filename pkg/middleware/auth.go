package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/dernek/pkg/apierror"
	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/contextkeys"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/observability"
)

// Authenticator resolves the identity of a request. *auth.TokenValidator implements it.
type Authenticator interface {
	Validate(ctx context.Context, r *http.Request) (*auth.Identity, error)
}

// AuthOptions configures WithAuth
type AuthOptions struct {
	// RequiredPermissions must all be held by the identity's role
	RequiredPermissions []auth.Permission
	Logger              *observability.Logger
	Metrics             *observability.Metrics
}

// AuthenticateStage validates the request credential and stores the identity in the context
type AuthenticateStage struct {
	validator Authenticator
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewAuthenticateStage creates the authentication stage
func NewAuthenticateStage(validator Authenticator, logger *observability.Logger, metrics *observability.Metrics) *AuthenticateStage {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &AuthenticateStage{validator: validator, logger: logger, metrics: metrics}
}

func (s *AuthenticateStage) Name() string { return "authenticate" }

// Admit validates r. Validator errors pass through unchanged so their envelope reaches the client.
func (s *AuthenticateStage) Admit(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	identity, err := s.validator.Validate(r.Context(), r)
	if err != nil {
		code := apierror.KindOf(err).Code()
		if apiErr, ok := apierror.As(err); ok {
			code = apiErr.ErrorCode()
		}
		s.metrics.RecordAuthDecision(code)

		event := audit.NewEvent(r, audit.EventTypeAuthTokenValidateFail, audit.EventStatusFailure).
			WithResource(audit.ResourceTypeEndpoint, r.URL.Path).
			WithError(code, err)
		event.StatusCode = apierror.KindOf(err).Status()
		logAudit(r, s.logger, event)
		return nil, err
	}

	ctx := contextkeys.WithIdentity(r.Context(), identity)
	ctx = contextkeys.WithUserID(ctx, identity.ID)
	return r.WithContext(ctx), nil
}

// AuthorizeStage requires the authenticated identity to hold every permission
type AuthorizeStage struct {
	required []auth.Permission
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewAuthorizeStage creates the authorization stage. With no permissions it only requires an identity.
func NewAuthorizeStage(required []auth.Permission, logger *observability.Logger, metrics *observability.Metrics) *AuthorizeStage {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &AuthorizeStage{required: required, logger: logger, metrics: metrics}
}

func (s *AuthorizeStage) Name() string { return "authorize" }

func (s *AuthorizeStage) Admit(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		s.metrics.RecordAuthDecision(apierror.KindMissingToken.Code())
		return nil, auth.ErrMissingToken
	}

	if !identity.Can(s.required...) {
		missing := auth.Missing(identity.Role, s.required...)
		s.metrics.RecordAuthDecision(auth.ErrInsufficientPermissions.ErrorCode())

		names := make([]string, len(missing))
		for i, p := range missing {
			names[i] = string(p)
		}
		event := audit.NewEvent(r, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).
			WithActor(identity.ID, identity.Email, identity.Role.String()).
			WithResource(audit.ResourceTypeEndpoint, r.URL.Path)
		event.StatusCode = http.StatusForbidden
		event.Metadata = map[string]interface{}{"missing_permissions": strings.Join(names, ",")}
		logAudit(r, s.logger, event)

		return nil, auth.ErrInsufficientPermissions
	}

	s.metrics.RecordAuthDecision("allowed")
	return r, nil
}

// WithAuth authenticates and authorizes the request before calling h with the identity.
// h never runs when either step fails.
func WithAuth(validator Authenticator, h ProtectedHandlerFunc, opts AuthOptions) HandlerFunc {
	authenticate := NewAuthenticateStage(validator, opts.Logger, opts.Metrics)
	authorize := NewAuthorizeStage(opts.RequiredPermissions, opts.Logger, opts.Metrics)

	return func(w http.ResponseWriter, r *http.Request) error {
		for _, stage := range []Stage{authenticate, authorize} {
			next, err := stage.Admit(w, r)
			if err != nil {
				return err
			}
			r = next
		}
		identity, _ := IdentityFromContext(r.Context())
		return h(w, r, identity)
	}
}

// WithAuthParams is WithAuth for handlers that take the route parameters.
// The parameters are passed through as the router resolved them.
func WithAuthParams(validator Authenticator, h ParamsHandlerFunc, opts AuthOptions) HandlerFunc {
	return WithAuth(validator, withParams(h), opts)
}

func withParams(h ParamsHandlerFunc) ProtectedHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error {
		params := httputil.PathVars(r)
		r = r.WithContext(contextkeys.WithParams(r.Context(), params))
		return h(w, r, identity, params)
	}
}

// identityHandler adapts a protected handler to run after the auth stages of a pipeline
func identityHandler(h ProtectedHandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			return auth.ErrMissingToken
		}
		return h(w, r, identity)
	}
}
