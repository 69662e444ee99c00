package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/middleware"
	"github.com/platinummonkey/dernek/pkg/observability"
)

// registerAuthRoutes registers session routes. Login and refresh use the strict preset.
func (s *Server) registerAuthRoutes(router *mux.Router) {
	if s.deps.Sessions != nil {
		router.Handle("/auth/login", methods{
			http.MethodPost: s.api(s.login, "Giriş başarısız", "strict"),
		})
		router.Handle("/auth/refresh", methods{
			http.MethodPost: s.api(s.refresh, "Oturum yenilenemedi", "strict"),
		})
	}
	router.Handle("/auth/logout", methods{
		http.MethodPost: s.api(s.logout, "Çıkış yapılamadı", "standard"),
	})
	router.Handle("/me", methods{
		http.MethodGet: s.mw.WithProtectedAPI(s.me, s.protectedOptions("Kullanıcı bilgileri alınamadı", "lenient")),
	})
}

// login handles POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	user, session, err := s.deps.Sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		event := audit.NewEvent(r, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure)
		event.Email = req.Email
		s.logAudit(r, event)
		return err
	}

	if s.deps.UserCache != nil {
		s.deps.UserCache.Invalidate(user.ID)
	}
	s.setSessionCookies(w, session)
	role := auth.ParseRole(user.Role)
	s.logAudit(r, audit.NewEvent(r, audit.EventTypeAuthLogin, audit.EventStatusSuccess).
		WithActor(user.ID, user.Email, role.String()).
		WithResource(audit.ResourceTypeSession, user.ID))

	return httputil.WriteSuccess(w, http.StatusOK, LoginResponse{
		User:    SessionUser{ID: user.ID, Email: user.Email, Role: role},
		Session: session,
	}, nil)
}

// refresh handles POST /api/auth/refresh
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) error {
	token := ""
	if c, err := r.Cookie(s.deps.Cookies.RefreshName); err == nil {
		token = c.Value
	}
	if token == "" && r.ContentLength != 0 {
		var req RefreshRequest
		if err := httputil.ParseJSONBody(w, r, &req); err != nil {
			return err
		}
		token = req.RefreshToken
	}
	if token == "" {
		return auth.ErrMissingToken
	}

	session, err := s.deps.Sessions.Refresh(token)
	if err != nil {
		return err
	}

	s.setSessionCookies(w, session)
	s.logAudit(r, audit.NewEvent(r, audit.EventTypeAuthTokenRefresh, audit.EventStatusSuccess))
	return httputil.WriteSuccess(w, http.StatusOK, session, nil)
}

// logout handles POST /api/auth/logout by expiring both session cookies
func (s *Server) logout(w http.ResponseWriter, r *http.Request) error {
	for _, name := range []string{s.deps.Cookies.AccessName, s.deps.Cookies.RefreshName} {
		http.SetCookie(w, s.cookie(name, "", -1))
	}
	s.logAudit(r, audit.NewEvent(r, audit.EventTypeAuthLogout, audit.EventStatusSuccess))
	return httputil.WriteMessage(w, http.StatusOK, "Çıkış yapıldı")
}

// me handles GET /api/me
func (s *Server) me(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error {
	return httputil.WriteSuccess(w, http.StatusOK, SessionUser{
		ID:          identity.ID,
		Email:       identity.Email,
		Role:        identity.Role,
		Permissions: auth.PermissionsFor(identity.Role),
	}, nil)
}

func (s *Server) setSessionCookies(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, s.cookie(s.deps.Cookies.AccessName, session.AccessToken, s.deps.Cookies.AccessTTL))
	http.SetCookie(w, s.cookie(s.deps.Cookies.RefreshName, session.RefreshToken, s.deps.Cookies.RefreshTTL))
}

// cookie builds an httpOnly SameSite=Strict session cookie. A negative ttl deletes it.
func (s *Server) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.deps.Cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}

func (s *Server) logAudit(r *http.Request, event *audit.Event) {
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok && event.UserID == "" {
		event.WithActor(identity.ID, identity.Email, identity.Role.String())
	}
	if err := audit.FromContext(r.Context()).Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to write audit event")
	}
}
