package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(RequestIDFromContext(r.Context())))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := WithRequestID(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get(RequestIDHeader) != "abc-123" || rr.Body.String() != "abc-123" {
		t.Fatalf("expected inbound id to be reused, got header=%q body=%q", rr.Header().Get(RequestIDHeader), rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(context.Background(), "c1"); !ok {
			t.Fatalf("hit %d should pass", i)
		}
	}
	if ok, _ := l.Allow(context.Background(), "c1"); ok {
		t.Fatal("third hit should be limited")
	}
	if ok, _ := l.Allow(context.Background(), "c2"); !ok {
		t.Fatal("other key should pass")
	}
	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow(context.Background(), "c1"); !ok {
		t.Fatal("new window should pass")
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(1, time.Minute), nil, nil, false)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req.RemoteAddr = "10.0.0.7:5555"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}

	closed := RateLimit(brokenLimiter{}, nil, nil, false)(okHandler())
	rr = httptest.NewRecorder()
	closed.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when failing closed, got %d", rr.Code)
	}
	open := RateLimit(brokenLimiter{}, nil, nil, true)(okHandler())
	rr = httptest.NewRecorder()
	open.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when failing open, got %d", rr.Code)
	}
}

func TestRecoverReturns500(t *testing.T) {
	h := WithRecover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"https://agenda.example"}, AllowedMethods: []string{"GET", "POST"}})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	req.Header.Set("Origin", "https://agenda.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "https://agenda.example" {
		t.Fatalf("unexpected preflight response %d %v", rr.Code, rr.Header())
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
