package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
)

// idemCall is one request pushed through the idempotency middleware.
type idemCall struct {
	operator string
	path     string
	key      string
	body     string
}

func (c idemCall) serve(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, c.path, strings.NewReader(c.body))
	req = req.WithContext(WithOperator(req.Context(), c.operator, enums.OperatorRoleClerk))
	if c.key != "" {
		req.Header.Set(IdempotencyKeyHeader, c.key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// countingHandler answers with status and counts how often it ran.
func countingHandler(calls *int, status func(call int) int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"2"`)
		w.WriteHeader(status(*calls))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func created(int) int { return http.StatusCreated }

func TestRouteTTLSelection(t *testing.T) {
	cases := []struct {
		method, path string
		want         time.Duration
		ok           bool
	}{
		{http.MethodPost, "/api/v1/manifests", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/manifests/", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/manifests/5d0c/dispatches", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/manifests/5d0c/link", 0, false},
		{http.MethodGet, "/api/v1/manifests", 0, false},
		{http.MethodPost, "/api/v1/followups/abc/resolve", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := routeTTL(tc.method, normalizePath(tc.path))
		if ok != tc.ok || ttl != tc.want {
			t.Fatalf("%s %s: got (%v, %v) want (%v, %v)", tc.method, tc.path, ttl, ok, tc.want, tc.ok)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store, _ := newTestRedis(t)
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, created))

	rec := idemCall{operator: "clerk-1", path: "/api/v1/manifests", body: `{}`}.serve(h)
	if rec.Code != http.StatusBadRequest || calls != 0 {
		t.Fatalf("expected 400 without reaching handler, got %d after %d calls", rec.Code, calls)
	}

	long := idemCall{operator: "clerk-1", path: "/api/v1/manifests", key: strings.Repeat("k", maxIdempotencyKeyLen+1)}
	if rec := long.serve(h); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected oversized key to be rejected, got %d", rec.Code)
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store, mr := newTestRedis(t)
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, created))
	call := idemCall{operator: "clerk-1", path: "/api/v1/manifests/abc/dispatches", key: "abc", body: `{"quantity":4}`}

	if rec := call.serve(h); rec.Code != http.StatusCreated || rec.Header().Get(replayedHeader) != "" {
		t.Fatalf("first call: status %d headers %v", rec.Code, rec.Header())
	}
	rec := call.serve(h)

	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if rec.Code != http.StatusCreated || rec.Body.String() != `{"ok":true}` {
		t.Fatalf("replay: status %d body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("ETag") != `"2"` || rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("replay headers %v", rec.Header())
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one stored record, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl != criticalIdempotencyTTL {
		t.Fatalf("dispatch record ttl %v", ttl)
	}
}

func TestIdempotencyMiddlewareScopesByOperator(t *testing.T) {
	store, _ := newTestRedis(t)
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, created))

	for _, operator := range []string{"clerk-1", "clerk-2"} {
		idemCall{operator: operator, path: "/api/v1/manifests", key: "same", body: `{}`}.serve(h)
	}
	if calls != 2 {
		t.Fatalf("keys must not be shared across operators, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareSkipsServerErrors(t *testing.T) {
	store, mr := newTestRedis(t)
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, func(call int) int {
		if call == 1 {
			return http.StatusServiceUnavailable
		}
		return http.StatusCreated
	}))
	call := idemCall{operator: "clerk-1", path: "/api/v1/manifests", key: "retry", body: `{}`}

	call.serve(h)
	if len(mr.Keys()) != 0 {
		t.Fatalf("server error must not be recorded")
	}
	if rec := call.serve(h); rec.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("retry: status %d after %d calls", rec.Code, calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store, _ := newTestRedis(t)
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, created))

	idemCall{operator: "clerk-1", path: "/api/v1/manifests", key: "xyz", body: `{"notes":"a"}`}.serve(h)
	rec := idemCall{operator: "clerk-1", path: "/api/v1/manifests", key: "xyz", body: `{"notes":"b"}`}.serve(h)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("error code %s", code)
	}
}

func TestIdempotencyMiddlewareSurfacesStoreFailure(t *testing.T) {
	store, mr := newTestRedis(t)
	var calls int
	h := Idempotency(store, nil)(countingHandler(&calls, created))
	mr.SetError("LOADING")

	rec := idemCall{operator: "clerk-1", path: "/api/v1/manifests", key: "k1", body: `{}`}.serve(h)
	if rec.Code != http.StatusServiceUnavailable || calls != 0 {
		t.Fatalf("expected 503 before handler, got %d after %d calls", rec.Code, calls)
	}
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return payload.Error.Code
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store, _ := newTestRedis(t)
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		w.WriteHeader(http.StatusCreated)
	}))
	call := idemCall{operator: "clerk-1", path: "/api/v1/manifests/abc/dispatches", key: "k1", body: `{"quantity":4}`}

	var wg sync.WaitGroup
	var first *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = call.serve(h)
	}()
	<-entered

	dup := call.serve(h)
	if dup.Code != http.StatusConflict {
		t.Fatalf("in-flight duplicate: expected 409 got %d", dup.Code)
	}
	if code := decodeErrorCode(t, dup); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("error code %s", code)
	}

	close(release)
	wg.Wait()
	if first.Code != http.StatusCreated {
		t.Fatalf("first request: %d", first.Code)
	}
	if rec := call.serve(h); rec.Code != http.StatusCreated || rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("after completion expected replay, got %d %v", rec.Code, rec.Header())
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("handler ran %d times for one idempotency key", n)
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnPanic(t *testing.T) {
	store, mr := newTestRedis(t)
	h := Idempotency(store, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	func() {
		defer func() { _ = recover() }()
		idemCall{operator: "clerk-1", path: "/api/v1/manifests", key: "p1", body: `{}`}.serve(h)
	}()
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("panicking request left %v behind", keys)
	}
}
