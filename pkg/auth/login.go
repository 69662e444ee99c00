package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

// CredentialStore resolves users by login email
type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (*UserRecord, error)
}

// PasswordAuthenticator signs users in with email and password
type PasswordAuthenticator struct {
	users  CredentialStore
	issuer *JWTIssuer
}

// NewPasswordAuthenticator creates an authenticator minting sessions with issuer
func NewPasswordAuthenticator(users CredentialStore, issuer *JWTIssuer) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users, issuer: issuer}
}

// SignIn checks the credentials and returns the user and a new session.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (a *PasswordAuthenticator) SignIn(ctx context.Context, email, password string) (*UserRecord, *Session, error) {
	user, err := a.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Unknown emails cost one bcrypt comparison, like a wrong password.
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, apierror.Wrap(err, apierror.KindUnexpected, "Oturum oluşturulamadı")
	}

	if user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := a.issuer.Issue(Subject{ID: user.ID, Email: user.Email})
	if err != nil {
		return nil, nil, apierror.Wrap(err, apierror.KindUnexpected, "Oturum oluşturulamadı")
	}
	return user, session, nil
}

// Refresh exchanges a refresh token for a new session
func (a *PasswordAuthenticator) Refresh(refreshToken string) (*Session, error) {
	session, err := a.issuer.Refresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return session, nil
}

// HashPassword returns the bcrypt hash stored for a password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOa6sVvYzC3CP4sPzv0QvjGlfRxuZLxQe")
