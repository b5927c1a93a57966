package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyzReportsFailingChecks(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		ReadyCheck{Name: "kafka"},
	)

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rw.Code)
	}
	if body := rw.Body.String(); !strings.Contains(body, "redis: connection refused") || strings.Contains(body, "db") {
		t.Fatalf("unexpected body: %q", body)
	}

	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rw.Code)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatal("expected debug")
	}
	if ParseLevel("warning") != slog.LevelWarn {
		t.Fatal("expected warn")
	}
	if ParseLevel("") != slog.LevelInfo {
		t.Fatal("expected info default")
	}
}
