package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig configures verification of tokens issued by an external provider
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

// OIDCVerifier verifies ID tokens against a provider's published keys
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider and builds a verifier
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("oidc issuer url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oidc client id is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// NewOIDCVerifierFromKeySet builds a verifier without discovery
func NewOIDCVerifierFromKeySet(issuer, clientID string, keySet oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// Verify implements IdentityVerifier
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*Subject, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}

	return &Subject{ID: idToken.Subject, Email: claims.Email}, nil
}
