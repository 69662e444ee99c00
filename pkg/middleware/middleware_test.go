package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/ratelimit"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// tokenAuthenticator maps bearer tokens to identities
type tokenAuthenticator map[string]*auth.Identity

func (a tokenAuthenticator) Validate(_ context.Context, r *http.Request) (*auth.Identity, error) {
	token, ok := auth.ExtractToken(r, "")
	if !ok {
		return nil, auth.ErrMissingToken
	}
	identity, ok := a[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return identity, nil
}

var testIdentities = tokenAuthenticator{
	"admin-token":  {ID: "u-admin", Email: "admin@example.org", Role: auth.RoleAdmin},
	"member-token": {ID: "u-member", Email: "uye@example.org", Role: auth.RoleMember},
}

type failingStore struct{}

func (failingStore) Check(context.Context, string, ratelimit.Config) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("dial tcp 10.0.0.5:6379: connection refused")
}

type fixture struct {
	mw     *Middleware
	store  *ratelimit.MemoryStore
	audit  *audit.Recorder
	called int
}

func newFixture() *fixture {
	clock := func() time.Time { return testNow }
	f := &fixture{
		store: ratelimit.NewMemoryStore(ratelimit.WithClock(clock)),
		audit: audit.NewRecorder(),
	}
	f.mw = New(f.store, testIdentities, nil).WithAudit(f.audit).WithClock(clock)
	return f
}

func (f *fixture) protectedHandler(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error {
	f.called++
	return httputil.WriteSuccess(w, http.StatusOK, map[string]string{"id": identity.ID}, nil)
}

func request(method, path, token string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWithProtectedAPI_MissingToken(t *testing.T) {
	f := newFixture()
	h := f.mw.WithProtectedAPI(f.protectedHandler, ProtectedOptions{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("GET", "/api/me", ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "MISSING_TOKEN", resp.Code)
	assert.Equal(t, "Oturum belirteci gerekli", resp.Error)
	assert.Equal(t, 0, f.called)
	assert.Equal(t, "29", rec.Header().Get(HeaderRateLimitRemaining))

	events := f.audit.OfType(audit.EventTypeAuthTokenValidateFail)
	require.Len(t, events, 1)
	assert.Equal(t, "MISSING_TOKEN", events[0].ErrorCode)
}

func TestWithProtectedAPI_InvalidToken(t *testing.T) {
	f := newFixture()
	h := f.mw.WithProtectedAPI(f.protectedHandler, ProtectedOptions{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("GET", "/api/me", "forged"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Code)
	assert.Equal(t, 0, f.called)
}

func TestWithProtectedAPI_InsufficientPermissions(t *testing.T) {
	f := newFixture()
	h := f.mw.WithProtectedAPI(f.protectedHandler, ProtectedOptions{
		Permissions: []auth.Permission{auth.PermMembersDelete},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("DELETE", "/api/members/7", "member-token"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", resp.Code)
	assert.Equal(t, "Yetkisiz erişim", resp.Error)
	assert.Equal(t, 0, f.called)

	record, ok := f.store.Get("standard:192.0.2.1")
	require.True(t, ok)
	assert.Equal(t, 1, record.Count, "the limiter counts the request exactly once")

	denied := f.audit.OfType(audit.EventTypeAuthzAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "u-member", denied[0].UserID)
	assert.Equal(t, "members.delete", denied[0].Metadata["missing_permissions"])
}

func TestWithProtectedAPI_Allowed(t *testing.T) {
	f := newFixture()
	h := f.mw.WithProtectedAPI(f.protectedHandler, ProtectedOptions{
		Permissions: []auth.Permission{auth.PermMembersView},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("GET", "/api/members", "member-token"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"u-member"}}`, rec.Body.String())
	assert.Equal(t, 1, f.called)
	assert.Equal(t, "30", rec.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "29", rec.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "2024-03-01T12:01:00.000Z", rec.Header().Get(HeaderRateLimitReset))
	assert.Empty(t, rec.Header().Get(HeaderRetryAfter))
}

func TestWithProtectedAPI_RateLimitBeforeAuth(t *testing.T) {
	f := newFixture()
	opts := ProtectedOptions{APIOptions: APIOptions{RateLimit: ratelimit.Config{Name: "tiny", Window: time.Minute, Limit: 2}}}
	h := f.mw.WithProtectedAPI(f.protectedHandler, opts)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("GET", "/api/me", ""))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{401, 401, 429}, codes)
	assert.Len(t, f.audit.OfType(audit.EventTypeAuthTokenValidateFail), 2)
	assert.Len(t, f.audit.OfType(audit.EventTypeRateLimitExceeded), 1)
}

func TestStrictLoginPolicy(t *testing.T) {
	f := newFixture()
	login := f.mw.WithAPIMiddleware(func(w http.ResponseWriter, r *http.Request) error {
		return auth.ErrInvalidCredentials
	}, APIOptions{RateLimit: f.mw.Presets().Strict})

	for i := 1; i <= 5; i++ {
		rec := httptest.NewRecorder()
		login.ServeHTTP(rec, request("POST", "/api/auth/login", ""))
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code, "request %d", i)
		assert.Equal(t, strconv.Itoa(5-i), rec.Header().Get(HeaderRateLimitRemaining))
	}

	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, request("POST", "/api/auth/login", ""))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	retryAfter, err := strconv.Atoi(rec.Header().Get(HeaderRetryAfter))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)

	var body struct {
		Error   string            `json:"error"`
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Code)
	assert.Equal(t, "Rate limit aşıldı", body.Error)
	assert.Equal(t, rec.Header().Get(HeaderRateLimitReset), body.Details["resetTime"])
	assert.Equal(t, "0", rec.Header().Get(HeaderRateLimitRemaining))
}

func TestWithAPIMiddleware_HandlerFailures(t *testing.T) {
	type memberInput struct {
		Ad    string `json:"ad" validate:"required"`
		TCNo  string `json:"tc_no" validate:"required,len=11,numeric"`
		Email string `json:"email" validate:"omitempty,email"`
	}

	tests := []struct {
		name       string
		handler    HandlerFunc
		body       string
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{
			name: "schema invalid body",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				var in memberInput
				return httputil.DecodeAndValidate(w, r, &in)
			},
			body:       `{"ad":"","tc_no":"123"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantError:  "Validation hatası",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				var in memberInput
				return httputil.DecodeAndValidate(w, r, &in)
			},
			body:       `{"ad":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
			wantError:  "İstek gövdesi geçersiz",
		},
		{
			name: "untagged error uses the route message",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				return errors.New("connection reset by peer")
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "ERROR",
			wantError:  "Üye oluşturulamadı",
		},
		{
			name: "panic",
			handler: func(w http.ResponseWriter, r *http.Request) error {
				var m map[string]int
				m["x"] = 1
				return nil
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "UNKNOWN_ERROR",
			wantError:  "Üye oluşturulamadı",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			h := f.mw.WithAPIMiddleware(tt.handler, APIOptions{ErrorMessage: "Üye oluşturulamadı"})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/members", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, rec.Header().Get(HeaderRateLimitLimit))
			if tt.wantCode == "VALIDATION_ERROR" {
				issues, ok := resp.Details.([]interface{})
				require.True(t, ok)
				assert.GreaterOrEqual(t, len(issues), 1)
			}
		})
	}
}

func TestWithAPIMiddleware_FailureAfterResponseStarted(t *testing.T) {
	f := newFixture()
	h := f.mw.WithAPIMiddleware(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		return errors.New("late failure")
	}, APIOptions{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/members", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWithProtectedAPIParams(t *testing.T) {
	f := newFixture()
	var gotParams map[string]string
	var gotIdentity *auth.Identity

	router := mux.NewRouter()
	router.Handle("/api/members/{id}", f.mw.WithProtectedAPIParams(
		func(w http.ResponseWriter, r *http.Request, identity *auth.Identity, params map[string]string) error {
			gotParams = params
			gotIdentity = identity
			return httputil.WriteSuccess(w, 0, params["id"], nil)
		},
		ProtectedOptions{Permissions: []auth.Permission{auth.PermMembersEdit}},
	)).Methods(http.MethodPut)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, request("PUT", "/api/members/42", "admin-token"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"id": "42"}, gotParams)
	require.NotNil(t, gotIdentity)
	assert.Equal(t, "u-admin", gotIdentity.ID)
}

func TestRateLimitStage_StoreFailure(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) error {
		return httputil.WriteSuccess(w, 0, "ok", nil)
	}

	t.Run("fails open by default", func(t *testing.T) {
		mw := New(failingStore{}, testIdentities, nil)
		rec := httptest.NewRecorder()
		mw.WithAPIMiddleware(handler, APIOptions{}).ServeHTTP(rec, request("GET", "/api/donations", ""))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(HeaderRateLimitLimit))
	})

	t.Run("fails closed when configured", func(t *testing.T) {
		mw := New(failingStore{}, testIdentities, nil).WithFailClosed(true)
		rec := httptest.NewRecorder()
		mw.WithAPIMiddleware(handler, APIOptions{}).ServeHTTP(rec, request("GET", "/api/donations", ""))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, CodeRateLimitUnavailable, resp.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	})
}

func TestRateLimitStage_KeysByPolicyAndClient(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	strict := NewRateLimitStage(store, ratelimit.Strict())
	lenient := NewRateLimitStage(store, ratelimit.Lenient(), TrustProxy(true))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "strict:192.0.2.1", strict.Key(r))
	assert.Equal(t, "lenient:203.0.113.9", lenient.Key(r))
}

func TestWithAuth(t *testing.T) {
	var called int
	h := WithAuth(testIdentities, func(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error {
		called++
		got, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		assert.Same(t, identity, got)
		return nil
	}, AuthOptions{RequiredPermissions: []auth.Permission{auth.PermSettingsManage}})

	err := h(httptest.NewRecorder(), request("GET", "/api/settings", ""))
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	err = h(httptest.NewRecorder(), request("GET", "/api/settings", "member-token"))
	assert.ErrorIs(t, err, auth.ErrInsufficientPermissions)
	assert.Equal(t, 0, called)

	require.NoError(t, h(httptest.NewRecorder(), request("GET", "/api/settings", "admin-token")))
	assert.Equal(t, 1, called)
}

func TestWithAuthParams_ParamsUntouched(t *testing.T) {
	router := mux.NewRouter()
	var got map[string]string
	h := WithAuthParams(testIdentities, func(w http.ResponseWriter, r *http.Request, identity *auth.Identity, params map[string]string) error {
		got = params
		return nil
	}, AuthOptions{})
	router.Handle("/api/social-aid/{id}/{action}", NewPipeline().Handler(h))

	router.ServeHTTP(httptest.NewRecorder(), request("POST", "/api/social-aid/9/approve", "member-token"))
	assert.Equal(t, map[string]string{"id": "9", "action": "approve"}, got)
}

func TestWithProtectedAPI_RealTokenValidator(t *testing.T) {
	issuer, err := auth.NewJWTIssuer(auth.JWTConfig{Secret: []byte("0123456789abcdef0123456789abcdef"), Issuer: "dernek-test"})
	require.NoError(t, err)
	session, err := issuer.Issue(auth.Subject{ID: "u-9", Email: "muhasebe@example.org"})
	require.NoError(t, err)

	users := userMap{"u-9": {ID: "u-9", Email: "muhasebe@example.org", Role: "muhasebe"}}
	validator := auth.NewTokenValidator(issuer, users)
	mw := New(ratelimit.NewMemoryStore(), validator, nil)

	var role auth.Role
	h := mw.WithProtectedAPI(func(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error {
		role = identity.Role
		return httputil.WriteSuccess(w, 0, nil, nil)
	}, ProtectedOptions{Permissions: []auth.Permission{auth.PermReportsExport}})

	r := httptest.NewRequest("GET", "/api/reports", nil)
	r.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: session.AccessToken})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.RoleAccountant, role)
}

type userMap map[string]*auth.UserRecord

func (m userMap) FindUser(_ context.Context, id string) (*auth.UserRecord, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func TestPipeline_Stages(t *testing.T) {
	f := newFixture()
	p := f.mw.protected(ProtectedOptions{})
	assert.Equal(t, []string{"ratelimit", "authenticate", "authorize"}, p.Stages())
}
