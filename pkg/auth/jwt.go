package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	// DefaultAccessTTL matches the lifetime of the access token cookie
	DefaultAccessTTL = 24 * time.Hour
	// DefaultRefreshTTL matches the lifetime of the refresh token cookie
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

var errWrongTokenType = errors.New("wrong token type")

// Claims is the JWT payload minted by JWTIssuer
type Claims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTConfig configures HS256 token minting and verification
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWTIssuer mints and verifies HS256 session tokens
type JWTIssuer struct {
	cfg JWTConfig
	now func() time.Time
}

// NewJWTIssuer creates an issuer; the secret must be at least 32 bytes
func NewJWTIssuer(cfg JWTConfig) (*JWTIssuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &JWTIssuer{cfg: cfg, now: time.Now}, nil
}

// Session is a freshly minted pair of tokens
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Issue mints an access and a refresh token for subject
func (j *JWTIssuer) Issue(subject Subject) (*Session, error) {
	now := j.now()
	accessExp := now.Add(j.cfg.AccessTTL)

	access, err := j.sign(subject, tokenTypeAccess, now, accessExp)
	if err != nil {
		return nil, err
	}
	refresh, err := j.sign(subject, tokenTypeRefresh, now, now.Add(j.cfg.RefreshTTL))
	if err != nil {
		return nil, err
	}

	return &Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

func (j *JWTIssuer) sign(subject Subject, typ string, now, exp time.Time) (string, error) {
	claims := Claims{
		Email:     subject.Email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.ID,
			Issuer:    j.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if j.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (j *JWTIssuer) parse(token, wantType string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.cfg.Issuer))
	}
	if j.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(j.cfg.Audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return j.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != wantType {
		return nil, errWrongTokenType
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Verify implements IdentityVerifier for access tokens
func (j *JWTIssuer) Verify(_ context.Context, token string) (*Subject, error) {
	claims, err := j.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	return &Subject{ID: claims.Subject, Email: claims.Email}, nil
}

// Refresh exchanges a valid refresh token for a new session
func (j *JWTIssuer) Refresh(refreshToken string) (*Session, error) {
	claims, err := j.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("verify refresh token: %w", err)
	}
	return j.Issue(Subject{ID: claims.Subject, Email: claims.Email})
}
