package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookshelf/internal/book"
	"bookshelf/internal/cache"
	"bookshelf/internal/config"
	"bookshelf/internal/httpx"
	"bookshelf/internal/metrics"
	"bookshelf/internal/platform/blobstore"
	"bookshelf/internal/proxy"
	"bookshelf/internal/testutil"
	"bookshelf/internal/user"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestApp(t *testing.T, db pinger) *app {
	t.Helper()
	store, err := cache.NewMemoryStore(context.Background(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	limiter := httpx.NewRateLimitMiddleware(1000, 1000)
	t.Cleanup(limiter.Stop)

	cfg := config.Config{Env: config.EnvTest, JWTSecret: "test-secret", MaxUploadBytes: 1 << 20}
	m := metrics.New()
	bookService := book.NewService(nil, blobstore.NewMemory(""), nil, 0)
	layer := cache.NewLayer(cache.Static{S: store}, cache.Options{TTL: time.Minute, Timeout: time.Second})

	return &app{
		cfg:     cfg,
		log:     zap.NewNop(),
		metrics: m,
		db:      db,
		cache:   layer,
		limiter: limiter,
		books:   book.NewHTTPHandler(bookService, layer),
		users:   user.NewHTTPHandler(user.NewService(nil, cfg.JWTSecret, time.Hour)),
		proxy:   proxy.NewHTTPHandler(bookService, time.Second, m),
	}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRoutes_Health(t *testing.T) {
	h := newTestApp(t, fakePinger{}).routes()

	w := serve(h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"OK"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRoutes_Ready(t *testing.T) {
	ok := newTestApp(t, fakePinger{}).routes()
	assert.Equal(t, http.StatusOK, serve(ok, http.MethodGet, "/readyz").Code)

	down := newTestApp(t, fakePinger{err: errors.New("connection refused")}).routes()
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/readyz").Code)
}

func TestRoutes_ProtectedRequireToken(t *testing.T) {
	h := newTestApp(t, fakePinger{}).routes()
	id := uuid.NewString()

	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/books/upload"},
		{http.MethodPatch, "/books/update/" + id},
		{http.MethodDelete, "/books/" + id},
		{http.MethodGet, "/users/me"},
	} {
		w := serve(h, rt.method, rt.path)
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.method+" "+rt.path)
		assert.Contains(t, w.Body.String(), `"success":false`)
	}
}

func TestRoutes_TokenReachesHandler(t *testing.T) {
	h := newTestApp(t, fakePinger{}).routes()
	userID := uuid.NewString()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, testutil.JSONRequest(t, http.MethodDelete, "/books/nope", nil,
		testutil.Token(t, "test-secret", userID)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", testutil.DecodeBody(t, w)["code"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, testutil.JSONRequest(t, http.MethodDelete, "/books/"+uuid.NewString(), nil,
		testutil.ExpiredToken(t, "test-secret", userID)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, testutil.DecodeBody(t, w)["success"])
}

func TestRoutes_PublicValidateIDs(t *testing.T) {
	h := newTestApp(t, fakePinger{}).routes()

	for _, path := range []string{
		"/books/id/nope",
		"/books/proxy/file/nope",
		"/books/proxy/cover/nope",
		"/books?author=nope",
	} {
		assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, path).Code, path)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	h := newTestApp(t, fakePinger{}).routes()
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPut, "/books/upload").Code)
}

func TestRoutes_MetricsRecordRoutePattern(t *testing.T) {
	h := newTestApp(t, fakePinger{}).routes()
	serve(h, http.MethodGet, "/books/id/nope")

	w := serve(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `route="GET /books/id/{bookId}"`), w.Body.String())
}
