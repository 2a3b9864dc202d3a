package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/repository/repotest"
	"github.com/dani-ai/dani/internal/service/gate"
	"github.com/golang-jwt/jwt/v5"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret  = "test-secret"
	ownerID = "6f1f3c1e-7a0e-4e55-9a4f-2b8f3f3d9c11"
)

func signToken(t *testing.T, key []byte, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   ownerID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func ownerEcho() *echo.Echo {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		id, ok := OwnerIDFromCtx(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.String(http.StatusOK, id)
	}, OwnerMiddleware([]byte(secret)))
	return e
}

func TestOwnerMiddleware_ValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, []byte(secret), jwt.SigningMethodHS256, validClaims()))

	rec := serve(ownerEcho(), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ownerID, rec.Body.String())
}

func TestOwnerMiddleware_Rejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExp := validClaims()
	noExp.ExpiresAt = nil

	notUUID := validClaims()
	notUUID.Subject = "42"

	noSub := validClaims()
	noSub.Subject = ""

	tests := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic abc",
		"empty token":     "Bearer ",
		"garbage":         "Bearer not.a.jwt",
		"wrong secret":    "Bearer " + signToken(t, []byte("other"), jwt.SigningMethodHS256, validClaims()),
		"wrong algorithm": "Bearer " + signToken(t, []byte(secret), jwt.SigningMethodHS512, validClaims()),
		"expired":         "Bearer " + signToken(t, []byte(secret), jwt.SigningMethodHS256, expired),
		"no expiry":       "Bearer " + signToken(t, []byte(secret), jwt.SigningMethodHS256, noExp),
		"subject not id":  "Bearer " + signToken(t, []byte(secret), jwt.SigningMethodHS256, notUUID),
		"no subject":      "Bearer " + signToken(t, []byte(secret), jwt.SigningMethodHS256, noSub),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := serve(ownerEcho(), req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func apiKeyEcho(g *gate.Gate, mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	chain := append([]echo.MiddlewareFunc{APIKeyMiddleware(g)}, mws...)
	e.POST("/", func(c echo.Context) error {
		k, ok := APIKeyFromCtx(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.String(http.StatusOK, k.Name)
	}, chain...)
	return e
}

func TestAPIKeyMiddleware(t *testing.T) {
	store := repotest.NewMemoryAPIKeys()
	store.Put(model.APIKey{ID: "1", Name: "git", Value: "dani-aaaaaaaaaaaaa", Usage: 0, RequestLimit: 5, UserID: ownerID})
	store.Put(model.APIKey{ID: "2", Name: "spent", Value: "dani-bbbbbbbbbbbbb", Usage: 5, RequestLimit: 5, UserID: ownerID})
	e := apiKeyEcho(gate.New(store, true))

	tests := []struct {
		key  string
		code int
	}{
		{"", http.StatusUnauthorized},
		{"dani-zzzzzzzzzzzzz", http.StatusUnauthorized},
		{"dani-bbbbbbbbbbbbb", http.StatusTooManyRequests},
		{"dani-aaaaaaaaaaaaa", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(HeaderAPIKey, tt.key)
		rec := serve(e, req)
		assert.Equal(t, tt.code, rec.Code, "key %q", tt.key)
	}

	// the check alone never consumes usage
	assert.Equal(t, int64(0), store.Usage("dani-aaaaaaaaaaaaa"))
}

func TestAPIKeyMiddleware_StoreError(t *testing.T) {
	store := repotest.NewMemoryAPIKeys()
	store.Err = assert.AnError
	e := apiKeyEcho(gate.New(store, true))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderAPIKey, "dani-aaaaaaaaaaaaa")
	assert.Equal(t, http.StatusInternalServerError, serve(e, req).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := repotest.NewMemoryAPIKeys()
	store.Put(model.APIKey{ID: "1", Name: "a", Value: "dani-aaaaaaaaaaaaa", RequestLimit: 1000, UserID: ownerID})
	store.Put(model.APIKey{ID: "2", Name: "b", Value: "dani-bbbbbbbbbbbbb", RequestLimit: 1000, UserID: ownerID})

	// a one-hour window keeps the test clear of window boundaries
	e := apiKeyEcho(gate.New(store, true), RateLimitMiddleware(RateLimitConfig{
		Redis:          rdb,
		RPS:            2,
		Window:         time.Hour,
		RetryAfterHint: true,
	}))

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(HeaderAPIKey, key)
		return serve(e, req)
	}

	assert.Equal(t, http.StatusOK, send("dani-aaaaaaaaaaaaa").Code)
	assert.Equal(t, http.StatusOK, send("dani-aaaaaaaaaaaaa").Code)

	rec := send("dani-aaaaaaaaaaaaa")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 3600)

	// other keys have their own window
	assert.Equal(t, http.StatusOK, send("dani-bbbbbbbbbbbbb").Code)
}

func TestRateLimitMiddleware_DisabledOrUnavailable(t *testing.T) {
	store := repotest.NewMemoryAPIKeys()
	store.Put(model.APIKey{ID: "1", Name: "a", Value: "dani-aaaaaaaaaaaaa", RequestLimit: 1000, UserID: ownerID})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	for _, cfg := range []RateLimitConfig{
		{Redis: nil, RPS: 1},
		{Redis: rdb, RPS: 0},
		{Redis: rdb, RPS: 1},
	} {
		e := apiKeyEcho(gate.New(store, true), RateLimitMiddleware(cfg))
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set(HeaderAPIKey, "dani-aaaaaaaaaaaaa")
			assert.Equal(t, http.StatusOK, serve(e, req).Code)
		}
	}
}
