package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

func doctorsListHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctors": []string{"dr-chen", "dr-okafor"},
		"success": true,
	})
}

func TestETagMiddleware_SetsValidatorHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := ETagMiddleware(DefaultCacheConfig())(doctorsListHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	etag := rec.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Errorf("expected weak ETag, got %q", etag)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "private, max-age=300" {
		t.Errorf("unexpected Cache-Control: %q", cc)
	}
	if vary := rec.Header().Get("Vary"); vary != "Accept, Authorization" {
		t.Errorf("unexpected Vary: %q", vary)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected response body to be written")
	}
}

func TestETagMiddleware_NotModifiedOnMatch(t *testing.T) {
	e := echo.New()
	h := ETagMiddleware(DefaultCacheConfig())(doctorsListHandler)

	first := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil), first)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag on the first response")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	if err := h(e.NewContext(req, second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Errorf("expected empty body on 304, got %q", second.Body.String())
	}
}

func TestETagMiddleware_ServesBodyOnMismatch(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	req.Header.Set("If-None-Match", `W/"deadbeef"`)
	rec := httptest.NewRecorder()

	h := ETagMiddleware(DefaultCacheConfig())(doctorsListHandler)
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected full body on validator mismatch")
	}
}

func TestETagMiddleware_WildcardValidatorMatches(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	req.Header.Set("If-None-Match", "*")
	rec := httptest.NewRecorder()

	h := ETagMiddleware(DefaultCacheConfig())(doctorsListHandler)
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304 for wildcard validator, got %d", rec.Code)
	}
}

func TestETagMiddleware_SkipsWriteMethods(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := ETagMiddleware(DefaultCacheConfig())(func(c echo.Context) error {
		return c.JSON(http.StatusCreated, map[string]bool{"success": true})
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") != "" {
		t.Error("expected no ETag on POST responses")
	}
}

func TestETagMiddleware_SkipsErrorResponses(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := ETagMiddleware(DefaultCacheConfig())(func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false})
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") != "" {
		t.Error("expected no ETag on error responses")
	}
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("expected no Cache-Control on error responses")
	}
}

func TestETagMiddleware_SkipsExcludedPaths(t *testing.T) {
	cfg := DefaultCacheConfig()
	cfg.ExcludePaths = []string{"/api/v1/reports"}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := ETagMiddleware(cfg)(doctorsListHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("ETag") != "" {
		t.Error("expected excluded path to pass through without ETag")
	}
}

func TestCacheControlDirectives(t *testing.T) {
	tests := []struct {
		name string
		cfg  CacheConfig
		want string
	}{
		{"private default", CacheConfig{Private: true, MaxAge: 300}, "private, max-age=300"},
		{"public directory", CacheConfig{Private: false, MaxAge: 60}, "public, max-age=60"},
		{"no-store wins", CacheConfig{NoStore: true, Private: true, MaxAge: 300}, "no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cacheControl(tt.cfg); got != tt.want {
				t.Errorf("cacheControl(%+v) = %q, want %q", tt.cfg, got, tt.want)
			}
		})
	}
}

func TestPublicCache_MissThenHit(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	hits := 0
	h := PublicCache(store, time.Minute)(func(c echo.Context) error {
		hits++
		return doctorsListHandler(c)
	})

	first := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil), first)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Header().Get(headerXCache) != "MISS" {
		t.Errorf("expected MISS on first request, got %q", first.Header().Get(headerXCache))
	}

	second := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil), second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Header().Get(headerXCache) != "HIT" {
		t.Errorf("expected HIT on second request, got %q", second.Header().Get(headerXCache))
	}
	if hits != 1 {
		t.Errorf("expected handler to run once, ran %d times", hits)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("expected cached body to match the original response")
	}
}

func TestPublicCache_QueryStringsCacheSeparately(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	hits := 0
	h := PublicCache(store, time.Minute)(func(c echo.Context) error {
		hits++
		return c.JSON(http.StatusOK, map[string]string{"specialty": c.QueryParam("specialty")})
	})

	cardio := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors/search?specialty=cardiology", nil), cardio)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	onco := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors/search?specialty=oncology", nil), onco)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hits != 2 {
		t.Errorf("expected both query variants to reach the handler, got %d hits", hits)
	}
	if cardio.Body.String() == onco.Body.String() {
		t.Error("expected distinct bodies for distinct query strings")
	}
}

func TestPublicCache_SkipsAuthenticatedPrincipal(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	hits := 0
	h := PublicCache(store, time.Minute)(func(c echo.Context) error {
		hits++
		return doctorsListHandler(c)
	})

	p := auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Header().Get(headerXCache) != "SKIP" {
			t.Errorf("expected SKIP for authenticated caller, got %q", rec.Header().Get(headerXCache))
		}
	}
	if hits != 2 {
		t.Errorf("expected every authenticated request to reach the handler, got %d hits", hits)
	}
}

func TestPublicCache_SkipsBearerTokens(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	hits := 0
	h := PublicCache(store, time.Minute)(func(c echo.Context) error {
		hits++
		return doctorsListHandler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Header().Get(headerXCache) != "SKIP" {
		t.Errorf("expected SKIP for Authorization header, got %q", rec.Header().Get(headerXCache))
	}
	if hits != 1 {
		t.Errorf("expected handler to run, got %d hits", hits)
	}
}

func TestPublicCache_DoesNotCacheErrors(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	hits := 0
	h := PublicCache(store, time.Minute)(func(c echo.Context) error {
		hits++
		return c.JSON(http.StatusNotFound, map[string]bool{"success": false})
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors/nope", nil), rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	}
	if hits != 2 {
		t.Errorf("expected error responses to stay uncached, got %d hits", hits)
	}
}

func TestPublicCache_EntryExpires(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	hits := 0
	h := PublicCache(store, 10*time.Millisecond)(func(c echo.Context) error {
		hits++
		return doctorsListHandler(c)
	})

	rec := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	rec = httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(headerXCache) != "MISS" {
		t.Errorf("expected MISS after TTL expiry, got %q", rec.Header().Get(headerXCache))
	}
	if hits != 2 {
		t.Errorf("expected handler to run again after expiry, got %d hits", hits)
	}
}

func TestInMemoryCacheStore_RoundTrip(t *testing.T) {
	store := NewInMemoryCacheStore()
	res := CachedResponse{Status: http.StatusOK, ContentType: echo.MIMEApplicationJSON, Body: []byte(`{"success":true}`)}

	store.Set("k1", res, time.Minute)
	got, ok := store.Get("k1")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.Status != res.Status || got.ContentType != res.ContentType || string(got.Body) != string(res.Body) {
		t.Errorf("cached response mismatch: %+v", got)
	}

	store.Delete("k1")
	if _, ok := store.Get("k1"); ok {
		t.Error("expected a miss after Delete")
	}

	store.Set("k2", res, time.Minute)
	store.Set("k3", res, time.Minute)
	store.Clear()
	if _, ok := store.Get("k2"); ok {
		t.Error("expected a miss after Clear")
	}
}

func TestInMemoryCacheStore_LazyExpiry(t *testing.T) {
	store := NewInMemoryCacheStore()
	store.Set("k", CachedResponse{Status: http.StatusOK}, 5*time.Millisecond)

	time.Sleep(15 * time.Millisecond)

	if _, ok := store.Get("k"); ok {
		t.Error("expected expired entry to read as a miss")
	}
	if n := storeLen(store); n != 0 {
		t.Errorf("expected expired entry to be dropped on read, %d left", n)
	}
}

func TestInMemoryCacheStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryCacheStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%10)
			store.Set(key, CachedResponse{Status: http.StatusOK, Body: []byte(key)}, time.Minute)
			store.Get(key)
		}(i)
	}
	wg.Wait()

	if n := storeLen(store); n != 10 {
		t.Errorf("expected 10 distinct keys, got %d", n)
	}
}

func TestInMemoryCacheStore_CleanupSweep(t *testing.T) {
	store := NewInMemoryCacheStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.Set("stale", CachedResponse{Status: http.StatusOK}, 5*time.Millisecond)
	store.StartCleanup(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if storeLen(store) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected cleanup sweep to drop the expired entry")
}

func TestWeakETag(t *testing.T) {
	a := weakETag([]byte("hello world"))
	if !strings.HasPrefix(a, `W/"`) || !strings.HasSuffix(a, `"`) {
		t.Errorf("expected weak quoted ETag, got %q", a)
	}
	if b := weakETag([]byte("hello world")); b != a {
		t.Errorf("expected stable ETag, got %q and %q", a, b)
	}
	if c := weakETag([]byte("something else")); c == a {
		t.Error("expected distinct bodies to produce distinct ETags")
	}
}

func TestMatchesETag(t *testing.T) {
	tests := []struct {
		name   string
		header string
		etag   string
		want   bool
	}{
		{"exact weak", `W/"abc"`, `W/"abc"`, true},
		{"weak vs strong", `"abc"`, `W/"abc"`, true},
		{"candidate list", `W/"x", W/"abc"`, `W/"abc"`, true},
		{"wildcard", "*", `W/"abc"`, true},
		{"mismatch", `W/"def"`, `W/"abc"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesETag(tt.header, tt.etag); got != tt.want {
				t.Errorf("matchesETag(%q, %q) = %v, want %v", tt.header, tt.etag, got, tt.want)
			}
		})
	}
}

func storeLen(s *InMemoryCacheStore) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
