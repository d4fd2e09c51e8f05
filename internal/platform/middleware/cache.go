package middleware

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

const headerXCache = "X-Cache"

// CacheConfig controls the validator and freshness headers set on read
// responses.
type CacheConfig struct {
	MaxAge       int      // max-age in seconds
	Private      bool     // private vs public Cache-Control
	NoStore      bool     // emit no-store and nothing else
	VaryHeaders  []string // request headers the response varies on
	ExcludePaths []string // exact paths left untouched
}

// DefaultCacheConfig returns the settings used for the administration API:
// short-lived, private responses that vary by caller identity.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:      300,
		Private:     true,
		VaryHeaders: []string{"Accept", "Authorization"},
	}
}

// ETagMiddleware stamps GET and HEAD responses with a weak ETag computed from
// the response body, plus Cache-Control and Vary headers per config. When the
// request carries a matching If-None-Match validator the body is dropped and
// 304 Not Modified returned instead. Error responses pass through untouched.
func ETagMiddleware(config CacheConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if pathExcluded(req.URL.Path, config.ExcludePaths) {
				return next(c)
			}

			res := c.Response()
			origWriter := res.Writer
			rec := newResponseRecorder(origWriter)
			res.Writer = rec

			if err := next(c); err != nil {
				res.Writer = origWriter
				return err
			}
			res.Writer = origWriter

			if rec.status >= 400 {
				return rec.replay()
			}

			res.Header().Set("Cache-Control", cacheControl(config))
			if len(config.VaryHeaders) > 0 {
				res.Header().Set("Vary", strings.Join(config.VaryHeaders, ", "))
			}

			etag := weakETag(rec.body.Bytes())
			res.Header().Set("ETag", etag)
			if match := req.Header.Get("If-None-Match"); match != "" && matchesETag(match, etag) {
				origWriter.WriteHeader(http.StatusNotModified)
				return nil
			}
			return rec.replay()
		}
	}
}

// CachedResponse is a response snapshot held by a CacheStore.
type CachedResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// CacheStore is the backend for the public response cache.
type CacheStore interface {
	Get(key string) (CachedResponse, bool)
	Set(key string, res CachedResponse, ttl time.Duration)
	Delete(key string)
	Clear()
}

// PublicCache serves repeated anonymous GETs from the store instead of the
// handler. Requests from an authenticated principal, or carrying an
// Authorization header, bypass the cache entirely so scoped responses are
// never shared between callers. Only 2xx responses are stored. The cache key
// includes the full request URI, so distinct query strings cache separately.
func PublicCache(store CacheStore, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			if req.Header.Get("Authorization") != "" || !auth.PrincipalFromContext(req.Context()).IsAnonymous() {
				c.Response().Header().Set(headerXCache, "SKIP")
				return next(c)
			}

			key := req.Method + " " + req.URL.RequestURI() + " " + req.Header.Get("Accept")
			if cached, ok := store.Get(key); ok {
				c.Response().Header().Set(headerXCache, "HIT")
				return c.Blob(cached.Status, cached.ContentType, cached.Body)
			}

			res := c.Response()
			origWriter := res.Writer
			rec := newResponseRecorder(origWriter)
			res.Writer = rec

			if err := next(c); err != nil {
				res.Writer = origWriter
				return err
			}
			res.Writer = origWriter

			if rec.status >= 200 && rec.status < 300 {
				store.Set(key, CachedResponse{
					Status:      rec.status,
					ContentType: res.Header().Get(echo.HeaderContentType),
					Body:        rec.body.Bytes(),
				}, ttl)
			}
			res.Header().Set(headerXCache, "MISS")
			return rec.replay()
		}
	}
}

type storeEntry struct {
	res       CachedResponse
	expiresAt time.Time
}

// InMemoryCacheStore is a mutex-guarded map store with lazy expiry. Expired
// entries are dropped on read; StartCleanup adds a background sweep so
// abandoned keys do not accumulate.
type InMemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]storeEntry
}

func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{entries: make(map[string]storeEntry)}
}

func (s *InMemoryCacheStore) Get(key string) (CachedResponse, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return CachedResponse{}, false
	}
	if time.Now().After(entry.expiresAt) {
		s.Delete(key)
		return CachedResponse{}, false
	}
	return entry.res, true
}

func (s *InMemoryCacheStore) Set(key string, res CachedResponse, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = storeEntry{res: res, expiresAt: time.Now().Add(ttl)}
}

func (s *InMemoryCacheStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *InMemoryCacheStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]storeEntry)
}

// StartCleanup sweeps expired entries every interval until ctx is cancelled.
func (s *InMemoryCacheStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purgeExpired()
			}
		}
	}()
}

func (s *InMemoryCacheStore) purgeExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// responseRecorder buffers the handler's status and body so middleware can
// inspect them before anything reaches the wire. Header writes pass through
// to the real writer; replay sends the captured status and body.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK, body: &bytes.Buffer{}}
}

func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

func (r *responseRecorder) WriteHeader(code int) { r.status = code }

// Flush is a no-op: nothing may reach the client before replay decides to.
func (r *responseRecorder) Flush() {}

func (r *responseRecorder) replay() error {
	r.ResponseWriter.WriteHeader(r.status)
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.ResponseWriter.Write(r.body.Bytes())
	return err
}

// weakETag fingerprints the body with FNV-1a. Cache validation only needs a
// fast stable digest, not a cryptographic one.
func weakETag(body []byte) string {
	h := fnv.New64a()
	h.Write(body)
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}

// matchesETag reports whether an If-None-Match value matches etag. Handles
// comma-separated candidate lists, the * wildcard, and weak comparison
// (W/"x" matches "x").
func matchesETag(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

func cacheControl(config CacheConfig) string {
	if config.NoStore {
		return "no-store"
	}
	visibility := "public"
	if config.Private {
		visibility = "private"
	}
	return fmt.Sprintf("%s, max-age=%d", visibility, config.MaxAge)
}

func pathExcluded(path string, excludes []string) bool {
	for _, ex := range excludes {
		if path == ex {
			return true
		}
	}
	return false
}
