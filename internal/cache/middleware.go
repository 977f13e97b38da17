// Package cache stores rendered listing pages so repeated requests for the
// same URI skip the database for a while.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/metrics"
	"github.com/rs/zerolog"
)

// Store is the backing key/value store for cached pages.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Pages caches successful GET responses keyed by request URI. A nil store
// makes it a pass-through. Store failures are logged and the request is
// served uncached.
func Pages(store Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || ttl <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := zerolog.Ctx(ctx)
			key := r.URL.RequestURI()

			raw, found, err := store.Get(ctx, key)
			if err != nil {
				metrics.PageCacheRequests.WithLabelValues("error").Inc()
				logger.Warn().Err(err).Str("key", key).Msg("page cache read failed")
			}
			if found {
				var cached entry
				if err := json.Unmarshal(raw, &cached); err == nil {
					metrics.PageCacheRequests.WithLabelValues("hit").Inc()
					if cached.ContentType != "" {
						w.Header().Set("Content-Type", cached.ContentType)
					}
					w.Header().Set("X-Cache", "HIT")
					w.WriteHeader(cached.Status)
					_, _ = w.Write(cached.Body)
					return
				}
			}
			if err == nil {
				metrics.PageCacheRequests.WithLabelValues("miss").Inc()
			}

			rec := &recorder{ResponseWriter: w}
			w.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(rec, r)

			if rec.status() != http.StatusOK {
				return
			}
			payload, err := json.Marshal(entry{
				Status:      http.StatusOK,
				ContentType: w.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := store.Set(ctx, key, payload, ttl); err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("page cache write failed")
			}
		})
	}
}

// recorder passes the response through while keeping a copy of the body.
type recorder struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}
