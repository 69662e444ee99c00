// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package owns the response envelopes of the API and the normalizer that
// turns any handler failure into one of them, plus request parsing, payload
// validation and the generic HTTP middleware.
//
// # Response Envelopes
//
// Success:
//
//	httputil.WriteSuccess(w, http.StatusOK, members, page.Meta(total))
//	// {"data": [...], "meta": {"page": 1, "limit": 10, "total": 42}}
//
// Errors:
//
//	status, resp := httputil.ToErrorResponse(err, "Üyeler getirilemedi", http.StatusInternalServerError)
//	httputil.WriteErrorResponse(w, status, resp)
//	// {"error": "...", "message": "...", "code": "NOT_FOUND"}
//
// Classification order: validation errors, errors tagged with an apierror.Kind,
// message heuristics for untagged errors, then the caller's default. Values that
// are not errors (recovered panics) become 500 UNKNOWN_ERROR.
//
// # Request Parsing
//
//	var req LoginRequest
//	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
//		return err // 400 INVALID_JSON or VALIDATION_ERROR
//	}
//
//	page, err := httputil.ParsePage(r) // page >= 1, 1 <= limit <= 100
//
// # Middleware
//
//	router.Use(httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(httputil.CORSOptions{AllowedOrigins: origins}),
//	))
//
// # Related Packages
//
//   - pkg/apierror: error kinds and validation issues
//   - pkg/middleware: the admission pipeline built on these helpers
package httputil
