package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoke(e *echo.Echo, h echo.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/notify/rules/run", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRateLimitAllowsUpToLimitThenRejects(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitPolicy{
		Name:   "test",
		Window: time.Minute,
		Limit:  3,
		Key:    func(echo.Context) string { return "client-1" },
	})
	h := mw(okHandler)

	for i := 0; i < 3; i++ {
		rec := invoke(e, h)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := invoke(e, h)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	e := echo.New()
	calls := 0
	mw := RateLimit(RateLimitPolicy{
		Window: time.Minute,
		Limit:  1,
		Key: func(echo.Context) string {
			calls++
			return fmt.Sprintf("client-%d", calls)
		},
	})
	h := mw(okHandler)

	// Every request carries a fresh key, so none is throttled.
	for i := 0; i < 5; i++ {
		rec := invoke(e, h)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitDefaultsApplied(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitPolicy{}) // zero-valued policy falls back to defaults
	h := mw(okHandler)

	rec := invoke(e, h)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubStore struct {
	allowed    bool
	retryAfter int
	err        error
	calls      int
}

func (s *stubStore) Allow(echo.Context, string, int, time.Duration) (bool, int, error) {
	s.calls++
	return s.allowed, s.retryAfter, s.err
}

func TestRateLimitWithStoreRejects(t *testing.T) {
	e := echo.New()
	store := &stubStore{allowed: false, retryAfter: 42}
	mw := RateLimitWithStore(RateLimitPolicy{Window: time.Minute, Limit: 10}, store)
	h := mw(okHandler)

	rec := invoke(e, h)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	require.Equal(t, 1, store.calls)
}

func TestRateLimitWithStoreFailsOpen(t *testing.T) {
	e := echo.New()
	store := &stubStore{err: fmt.Errorf("redis down")}
	mw := RateLimitWithStore(RateLimitPolicy{Window: time.Minute, Limit: 10}, store)
	h := mw(okHandler)

	// Throttling is best-effort: a broken store must not block triggering.
	rec := invoke(e, h)
	assert.Equal(t, http.StatusOK, rec.Code)
}
