// Package audit records security-relevant events of the admission pipeline.
//
// # Overview
//
// Authentication failures, authorization denials, rate-limit rejections, sign-ins
// and data mutations are written as structured events. The production sink is a
// logrus JSON logger, usually behind an AsyncLogger so request handling never
// waits on the sink. A Recorder keeps events in memory for tests.
//
// # Event Types
//
// Authentication: auth.login, auth.login_failed, auth.logout, auth.token_validate_fail
// Authorization: authz.access_denied
// Admission: ratelimit.exceeded
// Data: data.create, data.update, data.delete, data.file_upload
//
// # Usage Example
//
//	logger := audit.NewAsyncLogger(audit.NewLogrusLogger(os.Stderr), 1024, nil)
//	defer logger.Close()
//	router.Use(audit.NewMiddleware(logger, false).Handler)
//
//	event := audit.NewEvent(r, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).
//		WithActor(id.ID, id.Email, id.Role.String())
//	audit.FromContext(r.Context()).Log(r.Context(), event)
//
// # Related Packages
//
//   - pkg/middleware: emits auth and rate-limit events
//   - pkg/api: emits sign-in and mutation events
package audit
