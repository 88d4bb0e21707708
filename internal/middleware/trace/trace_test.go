package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "clubfin/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Component: applog.ComponentHTTP, JSON: true, Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "198.51.100.7" })

	var seenID string
	var seenLogger *applog.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		seenLogger = applog.FromContext(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/budgets/2026", nil))

	if !strings.HasPrefix(seenID, "req_") {
		t.Errorf("request id = %q", seenID)
	}
	if rec.Header().Get(HeaderRequestID) != seenID {
		t.Error("request id should be echoed in the response")
	}
	if seenLogger == nil || seenLogger.Component() != applog.ComponentHTTP {
		t.Error("handler should see the request-scoped logger")
	}

	out := buf.String()
	for _, want := range []string{`"status_code":500`, `"request_id":"` + seenID + `"`, `"client_ip":"198.51.100.7"`, `"level":"ERROR"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}

	got := m.GetMetrics()
	if got.TotalRequests != 1 || got.ServerErrors != 1 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(applog.New(applog.Config{Output: &bytes.Buffer{}}), nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(HeaderRequestID, "upstream-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if got := rec.Header().Get(HeaderRequestID); got != "upstream-42" {
		t.Errorf("request id = %q, want upstream-42", got)
	}
}
