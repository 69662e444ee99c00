// Package api provides the HTTP API of the association panel.
//
// # Overview
//
// Server registers every route on a gorilla/mux router. Routes are declared
// with the admission middleware from pkg/middleware, so each one states its
// rate limit preset, its fallback error message and, when protected, the
// permissions it needs:
//
//	router.Handle("/members/{id}", methods{
//		http.MethodDelete: s.mw.WithProtectedAPIParams(s.deleteMember,
//			s.protectedOptions("Üye silinemedi", "standard", auth.PermMembersDelete)),
//	})
//
// Handlers return errors instead of writing them; the pipeline turns them into
// the normalized error envelope.
//
// # Routes
//
//	POST   /api/auth/login      strict, sets session cookies
//	POST   /api/auth/refresh    strict
//	POST   /api/auth/logout     clears session cookies
//	GET    /api/me              protected
//	GET    /api/members         protected, members.view
//	POST   /api/members         protected, members.create
//	GET    /api/members/{id}    protected, members.view
//	PUT    /api/members/{id}    protected, members.edit
//	DELETE /api/members/{id}    protected, members.delete
//	GET    /api/donations       protected, donations.view, filters amac and tur
//	POST   /api/donations       protected, donations.create
//	GET    /api/social-aid      protected, social-aid.view, filters durum
//	POST   /api/social-aid      protected, social-aid.create
//	GET    /api/documents       protected, documents.view
//	POST   /api/documents       protected, documents.create, multipart
//	GET    /api/users           protected, users.view
//	GET    /healthz, /readyz, /metrics
//
// Only the auth routes skip authentication. Every pipeline rate limits first,
// so rejected credentials still count against the client's budget.
package api
