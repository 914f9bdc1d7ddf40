package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/facebookgo/httpdown"
	raven "github.com/getsentry/raven-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bookshelf/internal/book"
	"bookshelf/internal/cache"
	"bookshelf/internal/config"
	"bookshelf/internal/httpx"
	"bookshelf/internal/metrics"
	"bookshelf/internal/platform/blobstore"
	"bookshelf/internal/platform/logging"
	"bookshelf/internal/proxy"
	"bookshelf/internal/user"
)

func main() {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if cfg.SentryDSN != "" {
		if err := raven.SetDSN(cfg.SentryDSN); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		}
		raven.SetEnvironment(cfg.Env)
	}
	httpx.ExposeErrorStack(cfg.IsDevelopment())

	if cfg.DatabaseDSN == "" {
		logger.Fatal("DB_DSN is required")
	}
	dbPool := mustOpenDB(cfg.DatabaseDSN, logger)

	m := metrics.New()

	blobs, err := openBlobStore(cfg, logger, m)
	if err != nil {
		logger.Fatal("blob store", zap.Error(err))
	}

	cacheSource, err := openCache(cfg, logger)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	cacheLayer := cache.NewLayer(cacheSource, cache.Options{
		TTL:     cfg.CacheTTL,
		Timeout: cfg.CacheTimeout,
		Logger:  logger.Named("cache"),
		Metrics: m,
	})

	bookService := book.NewService(book.NewPostgresRepo(dbPool, cfg.DBTimeout), blobs, logger.Named("book"), cfg.BlobTimeout)
	userService := user.NewService(user.NewPostgresRepo(dbPool, cfg.DBTimeout), cfg.JWTSecret, cfg.JWTTTL)

	limiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst).TrustForwardedFor(cfg.TrustProxy)
	defer limiter.Stop()

	a := &app{
		cfg:     cfg,
		log:     logger,
		metrics: m,
		db:      dbPool,
		cache:   cacheLayer,
		limiter: limiter,
		books:   book.NewHTTPHandler(bookService, cacheLayer),
		users:   user.NewHTTPHandler(userService),
		proxy:   proxy.NewHTTPHandler(bookService, cfg.ProxyTimeout, m),
	}
	if mem, ok := blobs.(*blobstore.Memory); ok {
		a.blobs = mem
	}

	hd := httpdown.HTTP{StopTimeout: 30 * time.Second, KillTimeout: 5 * time.Second}
	server, err := hd.ListenAndServe(&http.Server{
		Addr:              cfg.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	})
	if err != nil {
		logger.Fatal("listen", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	logger.Info("server started", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info("shutting down", zap.String("signal", s.String()))
		if err := server.Stop(); err != nil {
			logger.Error("server stop", zap.Error(err))
		}
	}()

	if err := server.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	if err := cacheSource.Close(); err != nil {
		logger.Warn("cache close", zap.Error(err))
	}
	dbPool.Close()
	logger.Info("server stopped")
}

// closableSource is a cache source the process owns and must close.
type closableSource interface {
	cache.Source
	Close() error
}

type staticSource struct {
	cache.Static
}

func (s staticSource) Close() error { return s.S.Close() }

func openCache(cfg config.Config, logger *zap.Logger) (closableSource, error) {
	if cfg.RedisURL != "" {
		return cache.NewConnector(cfg.RedisURL, cache.DefaultBackoff(), logger.Named("redis"))
	}
	logger.Info("REDIS_URL not set, using in-process cache")
	store, err := cache.NewMemoryStore(context.Background(), cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	return staticSource{cache.Static{S: store}}, nil
}

func openBlobStore(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) (book.BlobStore, error) {
	if cfg.IsTest() && cfg.S3Bucket == "" {
		logger.Info("S3_BUCKET not set, using in-memory blob store")
		return blobstore.NewMemory("http://localhost" + cfg.Addr + "/blobs"), nil
	}
	return blobstore.NewS3(blobstore.S3Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKeyID:   cfg.S3AccessKeyID,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	}, logger.Named("s3"), m)
}

func mustOpenDB(dsn string, logger *zap.Logger) *pgxpool.Pool {
	ctx := context.Background()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("cannot parse DB_DSN", zap.Error(err))
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("cannot create db pool", zap.Error(err))
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		logger.Fatal("cannot ping database", zap.String("dsn", redactDSN(dsn)), zap.Error(err))
	}
	logger.Info("database connection OK")
	return pool
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
