package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/taskdeck/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
	maxIdempotencyKeyLen = 255
)

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency deduplicates POST/PUT/PATCH/DELETE requests carrying an
// Idempotency-Key header. Responses below 500 are stored in store for ttl and
// replayed verbatim for a repeated key on the same method and path. A repeat
// that arrives while the first request is still running gets 409.
func Idempotency(store cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	var inflight sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				writeMiddlewareError(w, http.StatusBadRequest, "idempotency key too long", "VALIDATION_ERROR")
				return
			}
			scoped := "idem:" + r.Method + ":" + r.URL.Path + ":" + key

			if replay(r.Context(), w, store, scoped) {
				return
			}

			if _, busy := inflight.LoadOrStore(scoped, struct{}{}); busy {
				writeMiddlewareError(w, http.StatusConflict, "a request with this idempotency key is in progress", "IDEMPOTENCY_IN_PROGRESS")
				return
			}
			defer inflight.Delete(scoped)

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			data, err := json.Marshal(idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    w.Header().Clone(),
				Body:       rec.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := store.Set(context.WithoutCancel(r.Context()), scoped, data, ttl); err != nil {
				slog.Warn("idempotency: failed to store response", "key", key, "error", err)
			}
		})
	}
}

// replay writes a stored response for key and reports whether it did.
func replay(ctx context.Context, w http.ResponseWriter, store cache.Cache, key string) bool {
	data, ok, err := store.Get(ctx, key)
	if err != nil {
		slog.Warn("idempotency: lookup failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}

	var cached idempotencyEntry
	if err := json.Unmarshal(data, &cached); err != nil {
		slog.Warn("idempotency: corrupt cache entry", "key", key)
		return false
	}
	for k, vals := range cached.Headers {
		if k == headerRequestID || strings.HasPrefix(k, "X-Ratelimit-") {
			continue
		}
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
	return true
}

func writeMiddlewareError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
