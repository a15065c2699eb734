package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/config"
	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return tok.Token
}

// serve runs h behind mw and returns the recorder.
func serve(t *testing.T, auth string, h echo.HandlerFunc, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/x", h, mw...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	p := Principal(c)
	ctxP := authz.FromContext(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"id": p.UserID, "role": p.Role, "ctx": ctxP.UserID})
}

func TestJWTAuth(t *testing.T) {
	rec := serve(t, "Bearer "+token(t, "u1", "Admin"), whoami, JWTAuth(secret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u1","role":"admin","ctx":"u1"}`, rec.Body.String())

	for name, auth := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"empty bearer": "Bearer ",
		"bad token":    "Bearer nope",
		"wrong secret": "Bearer " + func() string {
			tok, _ := utils.NewAccessToken("other", "u1", "user", 5)
			return tok.Token
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, auth, whoami, JWTAuth(secret))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"kind":"Unauthenticated"`)
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	rec := serve(t, "", whoami, OptionalJWT(secret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"","role":"","ctx":""}`, rec.Body.String())

	rec = serve(t, "Bearer garbage", whoami, OptionalJWT(secret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"","role":"","ctx":""}`, rec.Body.String())

	rec = serve(t, "Bearer "+token(t, "u2", "user"), whoami, OptionalJWT(secret))
	assert.JSONEq(t, `{"id":"u2","role":"user","ctx":"u2"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	staff := []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(model.RoleAdmin, model.RoleSuperAdmin)}

	assert.Equal(t, http.StatusOK, serve(t, "Bearer "+token(t, "a", "SUPERADMIN"), whoami, staff...).Code)
	assert.Equal(t, http.StatusOK, serve(t, "Bearer "+token(t, "a", "admin"), whoami, staff...).Code)

	rec := serve(t, "Bearer "+token(t, "u", "user"), whoami, staff...)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"Forbidden"`)

	// Without JWTAuth in front the principal is anonymous.
	rec = serve(t, "", whoami, RequireRole(model.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("cache", "get", "/v1/qrcode/a", "")
	assert.Equal(t, a, CacheKey("cache", "GET", "/v1/qrcode/a", ""))
	assert.NotEqual(t, a, CacheKey("cache", "GET", "/v1/qrcode/b", ""))
	assert.NotEqual(t, a, CacheKey("cache", "GET", "/v1/qrcode/a", "x=1"))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, a)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("defg"))

	assert.Equal(t, "abcdefg", rec.Body.String())
	assert.Equal(t, "abcd", cw.buf.String())
	assert.EqualValues(t, 7, cw.size)
}

func TestDisabledWithoutRedis(t *testing.T) {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	limiter := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil)
	cache := NewResponseCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}}, nil, nil)
	for i := 0; i < 3; i++ {
		rec := serve(t, "", ok, limiter, cache.Middleware())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}

	var nilCache *ResponseCache
	assert.NotPanics(t, func() { nilCache.Purge(context.Background(), "/v1/qrcode/a") })
	assert.NotPanics(t, func() { nilCache.PurgeAll(context.Background()) })
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/qr/1000000000000001/location", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/qr/:ref/location")
	cfg := config.RateLimitConfig{Prefix: "rl"}

	cases := map[string]string{
		"ip":         "rl:ip:10.0.0.7",
		"user":       "rl:user:anon",
		"ip_route":   "rl:ip:10.0.0.7:route:POST /v1/qr/:ref/location",
		"":           "rl:ip:10.0.0.7:user:anon:route:POST /v1/qr/:ref/location",
		"user_route": "rl:user:anon:route:POST /v1/qr/:ref/location",
	}
	for strategy, want := range cases {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, buildRateKey(cfg, c), strategy)
	}

	setPrincipal(c, authz.Principal{UserID: "u9", Role: model.RoleUser})
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:u9", buildRateKey(cfg, c))
}

func TestAsInt64(t *testing.T) {
	assert.EqualValues(t, 5, asInt64(int64(5)))
	assert.EqualValues(t, 5, asInt64(5))
	assert.EqualValues(t, 5, asInt64(5.9))
	assert.EqualValues(t, 5, asInt64("5"))
	assert.EqualValues(t, 0, asInt64(nil))
}
