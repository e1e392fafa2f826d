package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/branchledger/api/responses"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/logger"
	pkgredis "github.com/angelmondragon/branchledger/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	maxIdempotencyKeyLen   = 200
	inFlightTTL            = 2 * time.Minute
)

// idempotentRoutes use path.Match patterns against the trimmed URL path.
var idempotentRoutes = []struct {
	method  string
	pattern string
	ttl     time.Duration
}{
	{http.MethodPost, "/api/v1/manifests", defaultIdempotencyTTL},
	// a replayed dispatch must never allocate twice
	{http.MethodPost, "/api/v1/manifests/*/dispatches", criticalIdempotencyTTL},
}

// replayHeaders survive into the stored response.
var replayHeaders = []string{"Content-Type", "ETag"}

type storedResponse struct {
	Pending     bool              `json:"pending,omitempty"`
	Status      int               `json:"status,omitempty"`
	Body        []byte            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency requires an Idempotency-Key on the routes above and replays the
// first non-5xx response for the same operator, route and key. The key is
// claimed before the handler runs; a second request arriving while the first
// is in flight, or one with a different body, is rejected.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, normalizePath(r.URL.Path))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey, err := idempotencyKey(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			digest := sha256.Sum256(body)
			hash := hex.EncodeToString(digest[:])
			key := store.IdempotencyKey(requestScope(r), clientKey)

			claimed, err := claimKey(ctx, store, key, hash, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !claimed {
				prior, err := loadResponse(ctx, store, key)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				if err := prior.usableFor(hash); err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				if logg != nil {
					logg.Info(logg.WithField(ctx, "idempotency_key", clientKey), "idempotency.replayed")
				}
				prior.replay(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			completed := false
			defer func() {
				if !completed {
					releaseKey(ctx, store, logg, key)
				}
			}()
			next.ServeHTTP(capture, r)
			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}
			// a failed save leaves the marker to expire rather than allow a rerun
			completed = true
			saveResponse(ctx, store, logg, key, ttl, capture.record(hash))
		})
	}
}

func idempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	switch {
	case key == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	case len(key) > maxIdempotencyKeyLen:
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "Idempotency-Key longer than %d characters", maxIdempotencyKeyLen)
	}
	return key, nil
}

func requestScope(r *http.Request) string {
	return OperatorIDFromContext(r.Context()) + "|" + r.Method + "|" + normalizePath(r.URL.Path)
}

// claimKey writes an in-flight marker for key. False means another request
// already holds or completed it.
func claimKey(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, ttl time.Duration) (bool, error) {
	marker, err := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency marker")
	}
	ok, err := store.SetNX(ctx, key, string(marker), min(ttl, inFlightTTL))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	return ok, nil
}

func releaseKey(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string) {
	if err := store.Del(context.WithoutCancel(ctx), key); err != nil && logg != nil {
		logg.Error(ctx, "idempotency.release_failed", err)
	}
}

func loadResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		// released between the claim attempt and this read
		return &storedResponse{Pending: true}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &stored, nil
}

// saveResponse replaces the in-flight marker with the finished response.
func saveResponse(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string, ttl time.Duration, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		_, err = store.SetXX(context.WithoutCancel(ctx), key, string(payload), ttl)
	}
	if err != nil && logg != nil {
		logg.Error(ctx, "idempotency.persist_failed", err)
	}
}

func (s *storedResponse) usableFor(hash string) error {
	switch {
	case s.RequestHash != "" && s.RequestHash != hash:
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	case s.Pending:
		return pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress")
	}
	return nil
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	for name, value := range s.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func normalizePath(p string) string {
	if len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	return p
}

func routeTTL(method, p string) (time.Duration, bool) {
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if ok, _ := path.Match(route.pattern, p); ok {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) record(hash string) storedResponse {
	resp := storedResponse{Status: c.statusCode(), Body: c.body.Bytes(), RequestHash: hash}
	for _, name := range replayHeaders {
		if value := c.Header().Get(name); value != "" {
			if resp.Headers == nil {
				resp.Headers = map[string]string{}
			}
			resp.Headers[name] = value
		}
	}
	return resp
}
