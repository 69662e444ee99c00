package auth

import (
	"errors"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

var (
	// ErrMissingToken means neither the Authorization header nor the access token cookie carried a token
	ErrMissingToken = &apierror.Error{
		Kind:    apierror.KindMissingToken,
		Title:   "Oturum belirteci gerekli",
		Message: "Authorization token missing",
	}

	// ErrInvalidToken means the identity backend rejected the token
	ErrInvalidToken = &apierror.Error{
		Kind:    apierror.KindInvalidToken,
		Title:   "Oturum belirteci geçersiz veya süresi dolmuş",
		Message: "Invalid or expired token",
	}

	// ErrUserLookupFailed means the user record could not be read
	ErrUserLookupFailed = &apierror.Error{
		Kind:    apierror.KindUserLookupFailed,
		Title:   "Kullanıcı bilgileri alınamadı",
		Message: "User data fetch failed",
	}

	// ErrInsufficientPermissions means the role lacks a required permission
	ErrInsufficientPermissions = &apierror.Error{
		Kind:    apierror.KindInsufficientPermissions,
		Title:   "Yetkisiz erişim",
		Message: "Bu işlem için gerekli izinlere sahip değilsiniz",
	}

	// ErrInvalidCredentials means the email/password pair did not match
	ErrInvalidCredentials = &apierror.Error{
		Kind:    apierror.KindInvalidCredentials,
		Title:   "Giriş başarısız",
		Message: "Invalid login credentials",
	}
)

// ErrUserNotFound is returned by user stores when no record exists
var ErrUserNotFound = errors.New("user not found")
