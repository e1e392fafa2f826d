package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/branchledger/api/middleware"
	"github.com/angelmondragon/branchledger/internal/followups"
	"github.com/angelmondragon/branchledger/internal/manifests"
	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/metrics"
	"github.com/angelmondragon/branchledger/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// stubManifests embeds the interface so only the methods a test touches need
// an implementation.
type stubManifests struct {
	manifests.Service
	creates  int
	expected *int
	deleted  bool
}

func (s *stubManifests) Create(_ context.Context, in manifests.CreateInput) (*manifests.EntryDTO, error) {
	s.creates++
	return &manifests.EntryDTO{ID: uuid.New(), Direction: in.Direction, Version: 1}, nil
}

func (s *stubManifests) Get(_ context.Context, id uuid.UUID) (*manifests.EntryDTO, error) {
	return &manifests.EntryDTO{ID: id, Version: 6}, nil
}

func (s *stubManifests) AddItem(_ context.Context, in manifests.AddItemInput) (*manifests.EntryDTO, error) {
	s.expected = in.ExpectedVersion
	return &manifests.EntryDTO{ID: in.EntryID, Version: 7}, nil
}

func (s *stubManifests) Delete(context.Context, manifests.DeleteInput) error {
	s.deleted = true
	return nil
}

type stubFollowUps struct {
	followups.Service
}

func (stubFollowUps) List(context.Context, followups.ListParams) (*followups.ListResult, error) {
	return &followups.ListResult{Items: []followups.FollowUpDTO{}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test"},
		RateLimit: config.RateLimitConfig{OperatorWindow: time.Minute, OperatorLimit: 100},
	}
}

func newTestRouter(t *testing.T, svc *stubManifests, redisClient *redis.Client) http.Handler {
	t.Helper()
	reg := metrics.NewRegistry()
	return NewRouter(testConfig(), logger.Nop(), stubPinger{}, redisClient, svc, stubFollowUps{}, metrics.Handler(reg), metrics.NewHTTPMetrics(reg))
}

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return redis.NewFromClient(raw)
}

func createBody() string {
	return `{"direction":"incoming","origin_branch_id":"` + uuid.NewString() + `","origin_branch_name":"Ankara"}`
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, &stubManifests{}, nil)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestMutationsRequireOperator(t *testing.T) {
	svc := &stubManifests{}
	router := newTestRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/manifests", strings.NewReader(createBody())))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if svc.creates != 0 {
		t.Fatalf("service should not be called")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests", strings.NewReader(createBody()))
	req.Header.Set(middleware.OperatorIDHeader, "op-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReadsDoNotRequireOperator(t *testing.T) {
	router := newTestRouter(t, &stubManifests{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/manifests/"+uuid.NewString(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if etag := rec.Header().Get("ETag"); etag != `"6"` {
		t.Fatalf("unexpected etag %q", etag)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/followups", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for follow-up list, got %d", rec.Code)
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	svc := &stubManifests{}
	router := newTestRouter(t, svc, nil)
	path := "/api/v1/manifests/" + uuid.NewString()

	req := httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set(middleware.OperatorIDHeader, "clerk-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for clerk, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set(middleware.OperatorIDHeader, "admin-1")
	req.Header.Set(middleware.OperatorRoleHeader, "admin")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", rec.Code)
	}
	if !svc.deleted {
		t.Fatalf("expected delete to reach the service")
	}
}

func TestIfMatchReachesService(t *testing.T) {
	svc := &stubManifests{}
	router := newTestRouter(t, svc, nil)

	body := `{"order_index":1,"description":"Boxes","total_quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests/"+uuid.NewString()+"/items", strings.NewReader(body))
	req.Header.Set(middleware.OperatorIDHeader, "op-1")
	req.Header.Set("If-Match", `W/"6"`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.expected == nil || *svc.expected != 6 {
		t.Fatalf("expected version 6, got %v", svc.expected)
	}
	if etag := rec.Header().Get("ETag"); etag != `"7"` {
		t.Fatalf("unexpected etag %q", etag)
	}
}

func TestIdempotencyWiredWithRedis(t *testing.T) {
	svc := &stubManifests{}
	router := newTestRouter(t, svc, newMiniredisClient(t))
	body := createBody()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests", strings.NewReader(body))
	req.Header.Set(middleware.OperatorIDHeader, "op-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/manifests", strings.NewReader(body))
		req.Header.Set(middleware.OperatorIDHeader, "op-1")
		req.Header.Set(middleware.IdempotencyKeyHeader, "create-1")
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	if svc.creates != 1 {
		t.Fatalf("expected a single create, got %d", svc.creates)
	}
	if rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header on second attempt")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubManifests{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(payload), "branchledger_http_requests_total") {
		t.Fatalf("expected http metrics in exposition")
	}
}
