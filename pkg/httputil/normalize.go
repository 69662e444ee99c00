package httputil

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

// ErrorResponse is the uniform error envelope
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse is the uniform success envelope
type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

const (
	CodeError        = "ERROR"
	CodeUnknownError = "UNKNOWN_ERROR"
)

// ToErrorResponse classifies v and builds the error envelope with its status.
//
// Validation errors win, then errors tagged with an apierror.Kind anywhere in
// the chain, then message heuristics for untagged errors. Anything that is not
// an error, such as a recovered panic value, is a 500 UNKNOWN_ERROR. A zero
// status defaults to 500.
func ToErrorResponse(v interface{}, defaultMessage string, status int) (int, ErrorResponse) {
	if status == 0 {
		status = http.StatusInternalServerError
	}

	err, ok := v.(error)
	if !ok || err == nil {
		return http.StatusInternalServerError, ErrorResponse{
			Error:   defaultMessage,
			Message: "Beklenmeyen bir hata oluştu",
			Code:    CodeUnknownError,
		}
	}

	var verr *apierror.ValidationError
	if errors.As(err, &verr) {
		issues := verr.Issues
		if issues == nil {
			issues = []apierror.Issue{}
		}
		return http.StatusBadRequest, ErrorResponse{
			Error:   "Validation hatası",
			Message: "Girilen veriler geçersiz",
			Code:    apierror.KindValidation.Code(),
			Details: issues,
		}
	}

	if apiErr, ok := apierror.As(err); ok {
		title := apiErr.Title
		if title == "" {
			title = defaultMessage
		}
		return apiErr.Status(), ErrorResponse{
			Error:   title,
			Message: apiErr.Message,
			Code:    apiErr.ErrorCode(),
			Details: apiErr.Details,
		}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "duplicate") || strings.Contains(lower, "unique"):
		return http.StatusConflict, ErrorResponse{
			Error:   "Çakışma hatası",
			Message: "Bu kayıt zaten mevcut",
			Code:    apierror.KindDuplicate.Code(),
			Details: msg,
		}
	case strings.Contains(lower, "not found") || strings.Contains(lower, "bulunamadı"):
		return http.StatusNotFound, ErrorResponse{
			Error:   "Bulunamadı",
			Message: orDefault(msg, "İstenen kayıt bulunamadı"),
			Code:    apierror.KindNotFound.Code(),
		}
	case strings.Contains(lower, "permission") || strings.Contains(lower, "yetki"):
		return http.StatusForbidden, ErrorResponse{
			Error:   "Yetki hatası",
			Message: orDefault(msg, "Bu işlem için yetkiniz yok"),
			Code:    apierror.KindPermission.Code(),
		}
	}

	return status, ErrorResponse{
		Error:   defaultMessage,
		Message: msg,
		Code:    CodeError,
	}
}

// ToSuccessResponse wraps data, and meta when given, in the success envelope.
// The data value is carried as is.
func ToSuccessResponse(data interface{}, meta interface{}) SuccessResponse {
	return SuccessResponse{Data: data, Meta: meta}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
