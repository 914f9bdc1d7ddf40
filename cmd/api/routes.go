package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bookshelf/internal/book"
	"bookshelf/internal/cache"
	"bookshelf/internal/config"
	"bookshelf/internal/httpx"
	"bookshelf/internal/metrics"
	"bookshelf/internal/proxy"
	"bookshelf/internal/user"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// app holds the process-wide dependencies the routes are built from.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	db      pinger
	cache   *cache.Layer
	limiter *httpx.RateLimitMiddleware

	books *book.HTTPHandler
	users *user.HTTPHandler
	proxy *proxy.HTTPHandler

	// blobs serves the in-memory blob store in test mode.
	blobs http.Handler
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	auth := httpx.AuthMiddleware(a.cfg.JWTSecret)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"message": "OK"})
	})
	mux.HandleFunc("GET /readyz", a.ready)
	mux.Handle("GET /metrics", a.metrics.Handler())

	mux.Handle("GET /books", a.cache.Middleware(book.Namespace)(http.HandlerFunc(a.books.List)))
	mux.HandleFunc("GET /books/id/{bookId}", a.books.GetByID)
	mux.Handle("POST /books/upload", auth(http.HandlerFunc(a.books.Upload)))
	mux.Handle("PATCH /books/update/{bookId}", auth(http.HandlerFunc(a.books.Update)))
	mux.Handle("DELETE /books/{bookId}", auth(http.HandlerFunc(a.books.Delete)))

	mux.HandleFunc("GET /books/proxy/file/{bookId}", a.proxy.ProxyFile)
	mux.HandleFunc("GET /books/proxy/cover/{bookId}", a.proxy.ProxyCover)

	if a.blobs != nil {
		mux.Handle("GET /blobs/", http.StripPrefix("/blobs", a.blobs))
	}

	mux.HandleFunc("POST /users/register", a.users.RegisterUser)
	mux.HandleFunc("POST /users/login", a.users.Login)
	mux.Handle("GET /users/me", auth(http.HandlerFunc(a.users.GetCurrentUser)))

	// The access log sits right on the mux so it sees the matched pattern.
	return httpx.Chain(mux,
		httpx.RequestIDMiddleware(a.log),
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware(!a.cfg.IsDevelopment()),
		httpx.CORSMiddleware(a.cfg.CORSOrigins),
		a.limiter.Middleware,
		httpx.RequestSizeLimitMiddleware(a.cfg.MaxUploadBytes),
		httpx.AccessLogMiddleware(a.metrics),
	)
}

func (a *app) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := a.db.Ping(ctx); err != nil {
		httpx.LoggerFrom(r.Context()).Warn("readiness check failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"message": "database not ready"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "ready"})
}
