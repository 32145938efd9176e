package middleware

import (
	"bytes"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/formwise/authcore/cache"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// CacheKey builds the response cache key "METHOD:URL", suffixed with
// ":<userID>" for per-user entries.
func CacheKey(r *http.Request, perUser bool) string {
	key := r.Method + ":" + r.URL.RequestURI()
	if perUser {
		if res, ok := AuthResultFromContext(r.Context()); ok {
			key += ":" + res.UserID
		}
	}
	return key
}

// Cached serves successful GET responses from store for ttl. Only 200
// responses are stored. With perUser the key includes the caller id, so it
// must run after [Authenticate].
func Cached(store cache.Store, ttl time.Duration, perUser bool) func(http.Handler) http.Handler {
	return CachedBy(store, ttl, func(r *http.Request) string {
		return CacheKey(r, perUser)
	})
}

// CachedBy is [Cached] with a caller-chosen key. Routes whose entries are
// invalidated by name use it to collapse query and path variants onto the one
// key they delete.
func CachedBy(store cache.Store, ttl time.Duration, keyOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := keyOf(r)
			var hit cachedResponse
			if ok, err := store.Get(r.Context(), key, &hit); err == nil && ok {
				w.Header().Set("Content-Type", hit.ContentType)
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(hit.Status)
				_, _ = w.Write(hit.Body)
				return
			}

			var buf bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			ww.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(ww, r)

			if ww.Status() != http.StatusOK {
				return
			}
			entry := cachedResponse{
				Status:      http.StatusOK,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        buf.Bytes(),
			}
			if err := store.Set(r.Context(), key, entry, ttl); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("response cache write failed")
			}
		})
	}
}
