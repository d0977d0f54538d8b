package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/movie-tracker/internal/config"
    "github.com/iliyamo/movie-tracker/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
    uid, ok := UserID(c)
    if !ok {
        return c.NoContent(http.StatusTeapot)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": uid, "role": Role(c)})
}

func do(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    if bearer != "" {
        req.Header.Set("Authorization", "Bearer "+bearer)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuth(t *testing.T) {
    e := echo.New()
    e.GET("/me", whoami, JWTAuth(secret))

    tok, err := utils.NewAccessToken(secret, 42, "MEMBER", 5)
    require.NoError(t, err)

    rec := do(e, http.MethodGet, "/me", tok.Token)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":42,"role":"MEMBER"}`, rec.Body.String())

    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "").Code)
    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "garbage").Code)

    other, err := utils.NewAccessToken("another-secret", 42, "MEMBER", 5)
    require.NoError(t, err)
    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", other.Token).Code)
}

func TestUserIDWithoutAuth(t *testing.T) {
    e := echo.New()
    e.GET("/open", whoami)
    assert.Equal(t, http.StatusTeapot, do(e, http.MethodGet, "/open", "").Code)
}

func TestLocalTokenBucket(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            time.Hour,
        Prefix:         "rl",
    }
    e := echo.New()
    e.POST("/w", whoami, JWTAuth(secret), NewTokenBucket(cfg, nil))

    alice, _ := utils.NewAccessToken(secret, 1, "MEMBER", 5)
    bob, _ := utils.NewAccessToken(secret, 2, "MEMBER", 5)

    assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/w", alice.Token).Code)
    assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/w", alice.Token).Code)

    rec := do(e, http.MethodPost, "/w", alice.Token)
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))

    // buckets are per user
    assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/w", bob.Token).Code)
}

func TestTokenBucketDisabled(t *testing.T) {
    e := echo.New()
    e.POST("/w", whoami, JWTAuth(secret), NewTokenBucket(config.RateLimitConfig{Capacity: 1}, nil))
    tok, _ := utils.NewAccessToken(secret, 1, "MEMBER", 5)
    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/w", tok.Token).Code)
    }
}

func TestRedisCacheWithoutClientPassesThrough(t *testing.T) {
    calls := 0
    e := echo.New()
    cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, Prefix: "cache"}
    e.GET("/list", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "ok")
    }, NewRedisCache(cfg, nil))

    do(e, http.MethodGet, "/list", "")
    rec := do(e, http.MethodGet, "/list", "")
    assert.Equal(t, 2, calls)
    assert.Empty(t, rec.Header().Get("X-Cache"))
    assert.NoError(t, InvalidateUser(context.Background(), nil, cfg, 1))
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"items":[]}`))
    require.NoError(t, err)

    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.Equal(t, `{"items":[]}`, string(body))

    _, _, _, ok = decodePayload([]byte{0, 0})
    assert.False(t, ok)
}

func TestCacheKeyIsPerUser(t *testing.T) {
    cfg := config.CacheConfig{Prefix: "cache"}
    e := echo.New()
    mk := func(uid uint64) string {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/movies?sort=year-asc", nil), httptest.NewRecorder())
        c.SetPath("/v1/movies")
        c.Set(userIDKey, uid)
        return cacheKeyFrom(cfg, c)
    }
    a, b := mk(1), mk(2)
    assert.NotEqual(t, a, b)
    assert.Contains(t, a, "cache:user:1:")
    assert.Equal(t, a, mk(1))
}
