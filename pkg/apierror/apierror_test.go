package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_StatusAndCode(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   string
	}{
		{KindUnexpected, http.StatusInternalServerError, "ERROR"},
		{KindValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{KindMissingToken, http.StatusUnauthorized, "MISSING_TOKEN"},
		{KindInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{KindInsufficientPermissions, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{KindPermission, http.StatusForbidden, "PERMISSION_ERROR"},
		{KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{KindMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{KindDuplicate, http.StatusConflict, "DUPLICATE_ERROR"},
		{KindRateLimited, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{KindUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{KindUserLookupFailed, http.StatusInternalServerError, "USER_LOOKUP_FAILED"},
		{Kind(99), http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
			assert.Equal(t, tt.code, tt.kind.Code())
		})
	}
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "Bulunamadı: üye 7", NotFound("Bulunamadı").WithMessage("üye 7").Error())
	assert.Equal(t, "Bulunamadı", NotFound("Bulunamadı").Error())
	assert.Equal(t, "boom", (&Error{Err: errors.New("boom")}).Error())
	assert.Equal(t, "NOT_FOUND", (&Error{Kind: KindNotFound}).Error())
}

func TestError_IsMatchesCopies(t *testing.T) {
	sentinel := &Error{Kind: KindInvalidToken, Title: "invalid"}
	cp := *sentinel
	cp.Err = errors.New("signature mismatch")

	wrapped := fmt.Errorf("validate: %w", &cp)
	assert.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, &Error{Kind: KindInvalidToken, Title: "other"})
	assert.NotErrorIs(t, wrapped, &Error{Kind: KindMissingToken, Title: "invalid"})
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindUnexpected, "x"))

	cause := errors.New("disk full")
	err := Wrap(cause, KindUnavailable, "Depolama hatası")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnavailable, KindOf(err))

	apiErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "disk full", apiErr.Message)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
	assert.Equal(t, KindValidation, KindOf(Invalid("email", "required")))
	assert.Equal(t, KindDuplicate, KindOf(fmt.Errorf("insert: %w", Duplicate("Çakışma hatası"))))
	assert.True(t, IsKind(Forbidden("Yetki hatası"), KindPermission))
	assert.False(t, IsKind(nil, KindUnexpected))
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	base := RateLimitExceeded()
	withDetails := base.WithDetails(map[string]string{"resetTime": "2024-01-01T00:00:00.000Z"})
	assert.Nil(t, base.Details)
	assert.NotNil(t, withDetails.Details)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", withDetails.ErrorCode())
}

func TestUnavailable_OverridesCode(t *testing.T) {
	err := Unavailable("Hız sınırlayıcı kullanılamıyor", "RATE_LIMIT_UNAVAILABLE")
	assert.Equal(t, http.StatusServiceUnavailable, err.Status())
	assert.Equal(t, "RATE_LIMIT_UNAVAILABLE", err.ErrorCode())
}

func TestMethodNotAllowed(t *testing.T) {
	err := MethodNotAllowed("PATCH")
	assert.Equal(t, "PATCH metodu bu endpoint için desteklenmiyor", err.Message)
	assert.Equal(t, http.StatusMethodNotAllowed, err.Status())
}

func TestValidationError(t *testing.T) {
	var verr ValidationError
	assert.Nil(t, verr.OrNil())

	verr.Add("email", "required").Add("password", "min=8")
	err := verr.OrNil()
	require.Error(t, err)
	assert.Equal(t, "validation failed: email: required; password: min=8", err.Error())

	got, ok := AsValidation(fmt.Errorf("bind: %w", err))
	require.True(t, ok)
	assert.Len(t, got.Issues, 2)
}
