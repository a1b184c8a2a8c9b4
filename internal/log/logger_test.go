package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerComponentAndTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentApp, Format: "json", Output: &buf})

	l.WithComponent(ComponentTrip).WithTrip("t1").Info("hello", FieldMember, "Ana")
	l.Debug("debug line")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if lines[0][FieldComponent] != ComponentTrip || lines[0][FieldTripID] != "t1" || lines[0][FieldMember] != "Ana" {
		t.Fatalf("unexpected first line: %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentApp || lines[1]["level"] != "DEBUG" {
		t.Fatalf("unexpected second line: %v", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMiddlewareAddsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Format: "json", Output: &buf})

	h := Middleware(l, func(*http.Request) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldRequestID] != "req-1" {
		t.Fatalf("expected request id on line, got %v", lines)
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}))
	r := httptest.NewRequest(http.MethodGet, "/api/trips", nil)

	sl.LogHTTPEnd(context.Background(), r, 200, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 404, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 503, 3, "10.0.0.1")
	sl.LogError(context.Background(), "boom", errors.New("disk full"), ComponentStorage, OpCreate, nil)

	lines := decodeLines(t, &buf)
	want := []string{"INFO", "WARN", "ERROR", "ERROR"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, lvl := range want {
		if lines[i]["level"] != lvl {
			t.Errorf("line %d level = %v, want %s", i, lines[i]["level"], lvl)
		}
	}
	if lines[3][FieldError] != "disk full" || lines[3][FieldComponent] != ComponentStorage {
		t.Fatalf("unexpected error line: %v", lines[3])
	}
}
