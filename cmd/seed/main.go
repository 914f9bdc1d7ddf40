package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookshelf/internal/apperr"
	"bookshelf/internal/book"
	"bookshelf/internal/cache"
	"bookshelf/internal/config"
	"bookshelf/internal/platform/blobstore"
	"bookshelf/internal/platform/logging"
	"bookshelf/internal/user"
)

const demoPassword = "password123"

func main() {
	var (
		users       = flag.Int("users", 3, "Number of demo authors")
		books       = flag.Int("books", 25, "Number of books to upload")
		concurrency = flag.Int("concurrency", 4, "Parallel uploads")
	)
	flag.Parse()

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

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	blobs, err := blobstore.NewS3(blobstore.S3Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKeyID:   cfg.S3AccessKeyID,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	}, logger.Named("s3"), nil)
	if err != nil {
		logger.Fatal("blob store", zap.Error(err))
	}

	userRepo := user.NewPostgresRepo(pool, cfg.DBTimeout)
	userService := user.NewService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	bookService := book.NewService(book.NewPostgresRepo(pool, cfg.DBTimeout), blobs, logger.Named("book"), cfg.BlobTimeout)

	authors, err := seedAuthors(ctx, userService, userRepo, *users)
	if err != nil {
		logger.Fatal("seed authors", zap.Error(err))
	}
	logger.Info("authors ready", zap.Int("count", len(authors)), zap.String("password", demoPassword))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for i := 0; i < *books; i++ {
		g.Go(func() error {
			in := demoBook(i, authors[i%len(authors)])
			b, err := bookService.Create(gctx, in)
			if err != nil {
				return fmt.Errorf("book %d: %w", i+1, err)
			}
			logger.Debug("book uploaded", zap.String("id", b.ID), zap.String("title", b.Title))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal("seed books", zap.Error(err))
	}
	logger.Info("books uploaded", zap.Int("count", *books), zap.Duration("took", time.Since(start)))

	if cfg.RedisURL != "" {
		conn, err := cache.NewConnector(cfg.RedisURL, cache.DefaultBackoff(), logger.Named("redis"))
		if err != nil {
			logger.Warn("cache not invalidated", zap.Error(err))
			return
		}
		defer conn.Close()
		cache.NewLayer(conn, cache.Options{TTL: cfg.CacheTTL, Timeout: cfg.CacheTimeout, Logger: logger}).
			InvalidateNamespace(ctx, book.Namespace)
	}
}

// seedAuthors registers demo users, reusing the ones a previous run left.
func seedAuthors(ctx context.Context, svc *user.Service, repo user.Repository, n int) ([]string, error) {
	if n < 1 {
		n = 1
	}
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		email := fmt.Sprintf("demo%d@bookshelf.local", i)
		u, _, err := svc.Register(ctx, fmt.Sprintf("Demo Author %d", i), email, demoPassword)
		if apperr.IsKind(err, apperr.KindConflict) {
			u, err = repo.GetByEmail(ctx, email)
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, u.ID)
	}
	if len(ids) == 0 {
		return nil, errors.New("no authors")
	}
	return ids, nil
}

func demoBook(i int, authorID string) book.CreateInput {
	title := fmt.Sprintf("%s of %s %d", randomWord(), randomWord(), i+1)
	genre := book.Genres[rand.Intn(len(book.Genres))]
	return book.CreateInput{
		Fields:   book.Fields{Title: title, Genre: genre},
		AuthorID: authorID,
		Cover: book.Asset{
			Filename:    "cover.png",
			ContentType: "image/png",
			Body:        bytes.NewReader(coverPNG(genre)),
		},
		Content: book.Asset{
			Filename:    "book.pdf",
			ContentType: "application/pdf",
			Body:        bytes.NewReader(contentPDF(title)),
		},
	}
}

func randomWord() string {
	words := []string{
		"Adventure", "Mystery", "Journey", "Discovery", "Secrets", "Dreams", "Hope",
		"Love", "War", "Peace", "Science", "Nature", "Technology", "History", "Future",
		"Past", "Present", "Reality", "Imagination", "Wisdom", "Life", "Death",
		"Light", "Darkness", "World", "Universe", "Time", "Space", "Mind", "Soul",
	}
	return words[rand.Intn(len(words))]
}
