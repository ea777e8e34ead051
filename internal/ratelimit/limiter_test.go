package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T, rate string) func(http.Handler) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "test:ratelimit")
	require.NoError(t, err)
	mw, err := Middleware(store, rate)
	require.NoError(t, err)
	return mw
}

func TestMiddlewareBlocksPastLimit(t *testing.T) {
	mw := newTestMiddleware(t, "2-M")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "203.0.113.7:51234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestMiddlewareKeysByClientIP(t *testing.T) {
	mw := newTestMiddleware(t, "1-M")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	reqA := httptest.NewRequest(http.MethodGet, "/login", nil)
	reqA.RemoteAddr = "203.0.113.7:1000"
	handler.ServeHTTP(first, reqA)
	require.Equal(t, http.StatusOK, first.Code)

	blocked := httptest.NewRecorder()
	reqA2 := httptest.NewRequest(http.MethodGet, "/login", nil)
	reqA2.RemoteAddr = "203.0.113.7:2000"
	handler.ServeHTTP(blocked, reqA2)
	require.Equal(t, http.StatusTooManyRequests, blocked.Code, "same IP, different port")

	other := httptest.NewRecorder()
	reqB := httptest.NewRequest(http.MethodGet, "/login", nil)
	reqB.RemoteAddr = "198.51.100.9:1000"
	handler.ServeHTTP(other, reqB)
	require.Equal(t, http.StatusOK, other.Code, "different IP has its own budget")
}

func TestMiddlewareRejectsBadRate(t *testing.T) {
	_, err := Middleware(nil, "lots")
	require.Error(t, err)
}
