package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

var tracer = otel.Tracer("github.com/platinummonkey/dernek/pkg/auth")

const (
	// AccessTokenCookie holds the access token for browser sessions
	AccessTokenCookie = "sb-access-token"
	// RefreshTokenCookie holds the refresh token for browser sessions
	RefreshTokenCookie = "sb-refresh-token"
)

// Subject is what the identity backend vouches for
type Subject struct {
	ID    string
	Email string
}

// IdentityVerifier checks a bearer token with the identity backend
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Subject, error)
}

// UserRecord is the authoritative user row
type UserRecord struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Role         string `db:"role"`
	PasswordHash string `db:"password_hash"`
}

// UserStore resolves user records by subject id
type UserStore interface {
	FindUser(ctx context.Context, id string) (*UserRecord, error)
}

// ExtractToken returns the bearer token of r.
// A well-formed "Authorization: Bearer" header wins; otherwise the named cookie is used.
func ExtractToken(r *http.Request, cookieName string) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token, true
			}
		}
	}

	if cookieName == "" {
		cookieName = AccessTokenCookie
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// TokenValidator turns a request credential into an Identity
type TokenValidator struct {
	verifier      IdentityVerifier
	users         UserStore
	cookieName    string
	verifyTimeout time.Duration
}

// ValidatorOption configures a TokenValidator
type ValidatorOption func(*TokenValidator)

// WithCookieName overrides the access token cookie name
func WithCookieName(name string) ValidatorOption {
	return func(v *TokenValidator) {
		if name != "" {
			v.cookieName = name
		}
	}
}

// WithVerifyTimeout bounds the identity backend call
func WithVerifyTimeout(d time.Duration) ValidatorOption {
	return func(v *TokenValidator) {
		v.verifyTimeout = d
	}
}

// NewTokenValidator creates a validator over the identity backend and user store
func NewTokenValidator(verifier IdentityVerifier, users UserStore, opts ...ValidatorOption) *TokenValidator {
	v := &TokenValidator{
		verifier:      verifier,
		users:         users,
		cookieName:    AccessTokenCookie,
		verifyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate authenticates r.
//
// Errors are ErrMissingToken, ErrInvalidToken or ErrUserLookupFailed. The role
// always comes from the user store, never from token claims.
func (v *TokenValidator) Validate(ctx context.Context, r *http.Request) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "TokenValidator.Validate")
	defer span.End()

	token, ok := ExtractToken(r, v.cookieName)
	if !ok {
		span.SetStatus(codes.Error, "missing token")
		return nil, ErrMissingToken
	}

	subject, err := v.verify(ctx, token)
	if err != nil || subject == nil || subject.ID == "" {
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "invalid token")
		return nil, ErrInvalidToken
	}
	span.SetAttributes(attribute.String("user.id", subject.ID))

	user, err := v.users.FindUser(ctx, subject.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, &apierror.Error{
			Kind:    ErrUserLookupFailed.Kind,
			Title:   ErrUserLookupFailed.Title,
			Message: ErrUserLookupFailed.Message,
			Err:     err,
		}
	}

	role := LeastPrivilegedRole
	if user.Role != "" {
		role = ParseRole(user.Role)
	}
	email := user.Email
	if email == "" {
		email = subject.Email
	}

	span.SetAttributes(attribute.String("user.role", role.String()))
	span.SetStatus(codes.Ok, "")
	return &Identity{ID: subject.ID, Email: email, Role: role}, nil
}

func (v *TokenValidator) verify(ctx context.Context, token string) (*Subject, error) {
	if v.verifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.verifyTimeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "IdentityVerifier.Verify", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	return v.verifier.Verify(ctx, token)
}
