// Package apierror defines the error taxonomy shared by the admission pipeline.
//
// Errors are tagged with a Kind where they are created. The HTTP layer maps the
// kind to a status code and a stable machine-readable code, so handlers never
// have to pick status codes themselves.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindMissingToken
	KindInvalidToken
	KindInvalidCredentials
	KindInsufficientPermissions
	KindPermission
	KindNotFound
	KindMethodNotAllowed
	KindDuplicate
	KindRateLimited
	KindUnavailable
	KindUserLookupFailed
	KindBadRequest
)

var kindInfo = map[Kind]struct {
	status int
	code   string
}{
	KindUnexpected:              {http.StatusInternalServerError, "ERROR"},
	KindValidation:              {http.StatusBadRequest, "VALIDATION_ERROR"},
	KindMissingToken:            {http.StatusUnauthorized, "MISSING_TOKEN"},
	KindInvalidToken:            {http.StatusUnauthorized, "INVALID_TOKEN"},
	KindInvalidCredentials:      {http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	KindInsufficientPermissions: {http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
	KindPermission:              {http.StatusForbidden, "PERMISSION_ERROR"},
	KindNotFound:                {http.StatusNotFound, "NOT_FOUND"},
	KindMethodNotAllowed:        {http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	KindDuplicate:               {http.StatusConflict, "DUPLICATE_ERROR"},
	KindRateLimited:             {http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
	KindUnavailable:             {http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	KindUserLookupFailed:        {http.StatusInternalServerError, "USER_LOOKUP_FAILED"},
	KindBadRequest:              {http.StatusBadRequest, "BAD_REQUEST"},
}

// Status returns the HTTP status code for the kind
func (k Kind) Status() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Code returns the stable error code for the kind
func (k Kind) Code() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return "ERROR"
}

func (k Kind) String() string {
	return k.Code()
}

// Error is an error tagged with a Kind.
//
// Title is the short user-facing text that goes into the envelope's "error"
// field. Message is optional detail. Code overrides the kind's default code.
type Error struct {
	Kind    Kind
	Title   string
	Message string
	Code    string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Title != "":
		return e.Title + ": " + e.Message
	case e.Title != "":
		return e.Title
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.Code()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and code so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.ErrorCode() == e.ErrorCode() && t.Title == e.Title
}

// Status returns the HTTP status for the error
func (e *Error) Status() int {
	return e.Kind.Status()
}

// ErrorCode returns the explicit code, falling back to the kind's code
func (e *Error) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.Code()
}

// WithMessage returns a copy of e with the given detail message
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithDetails returns a copy of e carrying details
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a tagged error
func New(kind Kind, title string) *Error {
	return &Error{Kind: kind, Title: title}
}

// Newf creates a tagged error with a formatted title
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Title: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err returns nil.
func Wrap(err error, kind Kind, title string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Title: title, Message: err.Error(), Err: err}
}

// As returns the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnexpected when untagged
func KindOf(err error) Kind {
	if apiErr, ok := As(err); ok {
		return apiErr.Kind
	}
	if _, ok := AsValidation(err); ok {
		return KindValidation
	}
	return KindUnexpected
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// NotFound creates a 404 error
func NotFound(title string) *Error {
	return New(KindNotFound, title)
}

// Duplicate creates a 409 error
func Duplicate(title string) *Error {
	return New(KindDuplicate, title)
}

// Forbidden creates a 403 permission error
func Forbidden(title string) *Error {
	return New(KindPermission, title)
}

// BadRequest creates a 400 error that is not a schema validation failure
func BadRequest(title string) *Error {
	return New(KindBadRequest, title)
}

// MethodNotAllowed creates a 405 error
func MethodNotAllowed(method string) *Error {
	return &Error{
		Kind:    KindMethodNotAllowed,
		Title:   "Method not allowed",
		Message: fmt.Sprintf("%s metodu bu endpoint için desteklenmiyor", method),
	}
}

// RateLimitExceeded creates a 429 error
func RateLimitExceeded() *Error {
	return &Error{
		Kind:    KindRateLimited,
		Title:   "Rate limit aşıldı",
		Message: "Çok fazla istek gönderdiniz. Lütfen daha sonra tekrar deneyin.",
	}
}

// Unavailable creates a 503 error with an explicit code
func Unavailable(title, code string) *Error {
	return &Error{Kind: KindUnavailable, Title: title, Code: code}
}
