package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/middleware"
	"github.com/platinummonkey/dernek/pkg/ratelimit"
)

func cookiesByName(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"staff@example.org","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decode(t, w)["data"].(map[string]interface{})
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "u-staff", user["id"])
	assert.Equal(t, "gorevli", user["role"])
	session := data["session"].(map[string]interface{})
	assert.NotEmpty(t, session["access_token"])
	assert.NotEmpty(t, session["refresh_token"])

	cookies := cookiesByName(w)
	access := cookies[auth.AccessTokenCookie]
	require.NotNil(t, access)
	assert.Equal(t, session["access_token"], access.Value)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, int(auth.DefaultAccessTTL.Seconds()), access.MaxAge)
	require.NotNil(t, cookies[auth.RefreshTokenCookie])

	events := env.audit.OfType(audit.EventTypeAuthLogin)
	require.Len(t, events, 1)
	assert.Equal(t, "u-staff", events[0].UserID)

	// The minted access cookie authenticates protected routes
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.AddCookie(access)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "u-staff", decode(t, w)["data"].(map[string]interface{})["id"])
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"staff@example.org","password":"yanlis-sifre"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])
	assert.Equal(t, "Giriş başarısız", body["error"])
	assert.Empty(t, w.Result().Cookies())

	failed := env.audit.OfType(audit.EventTypeAuthLoginFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "staff@example.org", failed[0].Email)
}

func TestLogin_UnknownUserLooksLikeWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"nobody@example.org","password":"`+testPassword+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, w)["code"])
}

func TestLogin_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"not-an-email","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
}

func TestLogin_StrictRateLimit(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"staff@example.org","password":"yanlis-sifre"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	}

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"staff@example.org","password":"`+testPassword+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	body := decode(t, w)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.Contains(t, body["details"], "resetTime")
	assert.Empty(t, env.audit.OfType(audit.EventTypeAuthLogin))
}

func TestRefresh_FromCookie(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"admin@example.org","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	refreshCookie := cookiesByName(w)[auth.RefreshTokenCookie]
	require.NotNil(t, refreshCookie)

	r := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	r.AddCookie(refreshCookie)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["data"].(map[string]interface{})["access_token"])
	assert.NotNil(t, cookiesByName(w)[auth.AccessTokenCookie])
	assert.Len(t, env.audit.OfType(audit.EventTypeAuthTokenRefresh), 1)
}

func TestRefresh_FromBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"admin@example.org","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	refresh := decode(t, w)["data"].(map[string]interface{})["session"].(map[string]interface{})["refresh_token"].(string)

	w = env.do(http.MethodPost, "/api/auth/refresh", "", `{"refresh_token":"`+refresh+`"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/refresh", "", `{"refresh_token":"`+env.tokens["admin"]+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/refresh", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_TOKEN", decode(t, w)["code"])
}

func TestLogout_ExpiresCookies(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/logout", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Çıkış yapıldı")

	cookies := cookiesByName(w)
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		c := cookies[name]
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}
	assert.Len(t, env.audit.OfType(audit.EventTypeAuthLogout), 1)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/me", "uye", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "u-member", data["id"])
	assert.Equal(t, "uye", data["role"])

	perms := data["permissions"].([]interface{})
	assert.Contains(t, perms, string(auth.PermMembersView))
	assert.NotContains(t, perms, string(auth.PermMembersDelete))
}

func TestMe_RoleComesFromUserStore(t *testing.T) {
	env := newTestEnv(t)

	// Demote the user after the token was minted
	env.db.MustExec(`UPDATE users SET role = ? WHERE id = ?`, "uye", "u-admin")

	w := env.do(http.MethodGet, "/api/me", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uye", decode(t, w)["data"].(map[string]interface{})["role"])

	w = env.do(http.MethodGet, "/api/users", "admin", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_InvalidatesCachedRole(t *testing.T) {
	env := newTestEnv(t)
	cache := auth.NewCachedUserStore(env.users, 16, time.Hour)
	deps := env.deps
	deps.Middleware = middleware.New(ratelimit.NewMemoryStore(), auth.NewTokenValidator(env.issuer, cache), nil)
	deps.UserCache = cache
	env.handler = NewServer(deps).Handler()

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/users", "admin", "").Code)
	env.db.MustExec(`UPDATE users SET role = ? WHERE id = ?`, "uye", "u-admin")

	// Served from the cache until the entry expires or the user signs in again
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/users", "admin", "").Code)

	w := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"admin@example.org","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/users", "admin", "").Code)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/users", "admin", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Len(t, body["data"], 3)
	assert.Equal(t, float64(3), body["meta"].(map[string]interface{})["total"])
	assert.NotContains(t, w.Body.String(), "password")

	w = env.do(http.MethodGet, "/api/users", "gorevli", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginBodyTooLargeIsRejected(t *testing.T) {
	env := newTestEnv(t)

	huge := `{"email":"admin@example.org","password":"` + strings.Repeat("a", 2<<20) + `"}`
	w := env.do(http.MethodPost, "/api/auth/login", "", huge)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
