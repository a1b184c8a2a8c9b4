package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tripsplit/internal/log"
)

func newTestMiddleware(buf *bytes.Buffer) *Middleware {
	logger := log.New(log.Config{Output: buf, Level: slog.LevelDebug})
	return NewMiddleware(logger, func(*http.Request) string { return "198.51.100.1" })
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trips", nil))

	if !strings.HasPrefix(seen, "req_") || len(seen) != 20 {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q != %q", rec.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "HTTP request started") || !strings.Contains(out, "status_code=418") {
		t.Fatalf("unexpected log output: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Fatalf("4xx should log at warn: %s", out)
	}
}

func TestMiddlewareHonoursInboundID(t *testing.T) {
	m := newTestMiddleware(&bytes.Buffer{})

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromRequest(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "abc-123" {
		t.Fatalf("inbound id not kept: %q", seen)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "has space")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen == "has space" {
		t.Fatal("invalid inbound id must be replaced")
	}
}

func TestMiddlewareMetrics(t *testing.T) {
	m := newTestMiddleware(&bytes.Buffer{})
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	got := m.GetMetrics()
	if got.TotalRequests != 3 || got.ServerErrors != 3 {
		t.Fatalf("metrics = %+v", got)
	}
}
