package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPMetricsExposedThroughHandler(t *testing.T) {
	reg := NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("/api/v1/manifests/{manifestId}", http.MethodGet, http.StatusOK, 20*time.Millisecond)
	m.Observe("", http.MethodGet, http.StatusNotFound, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got, err := fetchCounterValue(mfs, "branchledger_http_requests_total", "route", "/api/v1/manifests/{manifestId}")
	if err != nil || got != 1 {
		t.Fatalf("expected one request, got %v (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "branchledger_http_requests_total", "route", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unmatched route under unknown, got %v (%v)", got, err)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "branchledger_http_request_duration_seconds") {
		t.Fatalf("expected histogram in exposition")
	}
}
