package book

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	raven "github.com/getsentry/raven-go"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookshelf/internal/apperr"
	"bookshelf/internal/httpx"
	"bookshelf/internal/platform/blobstore"
)

func init() {
	httpx.RegisterValidation("genre", func(fl validator.FieldLevel) bool {
		return IsGenre(fl.Field().String())
	}, func(field, _ string) string {
		return field + " must be one of: " + strings.Join(Genres, ", ")
	})
}

// Asset is an uploaded file on its way to the blob store.
type Asset struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type CreateInput struct {
	Fields
	AuthorID string
	Cover    Asset
	Content  Asset
}

// UpdateInput carries a partial update. Empty fields and nil assets keep
// the stored values.
type UpdateInput struct {
	BookID  string
	UserID  string
	Title   string
	Genre   string
	Cover   *Asset
	Content *Asset
}

// Service provides book-related business logic. It is the only writer of
// book records and keeps each record's two assets in step with it.
type Service struct {
	repo        Repository
	blobs       BlobStore
	log         *zap.Logger
	blobTimeout time.Duration
}

// NewService creates a new book service.
func NewService(repo Repository, blobs BlobStore, log *zap.Logger, blobTimeout time.Duration) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if blobTimeout <= 0 {
		blobTimeout = time.Minute
	}
	return &Service{repo: repo, blobs: blobs, log: log, blobTimeout: blobTimeout}
}

func validateFields(f Fields) error {
	if details := httpx.ValidateStruct(f); len(details) > 0 {
		return apperr.Validation("Validation failed", details...)
	}
	return nil
}

// Create uploads both assets concurrently, then stores the record. Either
// both assets end up referenced by a new record or neither is kept.
func (s *Service) Create(ctx context.Context, in CreateInput) (Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Genre = strings.TrimSpace(in.Genre)
	if err := validateFields(in.Fields); err != nil {
		return Book{}, err
	}
	if in.AuthorID == "" {
		return Book{}, apperr.Unauthorized("Authentication required")
	}
	if in.Cover.Body == nil || in.Content.Body == nil {
		return Book{}, apperr.Validation("Both a cover image and a book file are required")
	}

	var coverURL, bookURL string
	var g errgroup.Group
	g.Go(func() error {
		var err error
		coverURL, err = s.put(ctx, blobstore.CoverKey(in.Cover.Filename), in.Cover)
		return err
	})
	g.Go(func() error {
		var err error
		bookURL, err = s.put(ctx, blobstore.BookKey(), in.Content)
		return err
	})
	if err := g.Wait(); err != nil {
		s.discard(ctx, "create", coverURL, bookURL)
		return Book{}, apperr.Upstream("Failed to upload book assets", err)
	}

	b := Book{
		Title:    in.Title,
		Genre:    in.Genre,
		Author:   Author{ID: in.AuthorID},
		CoverURL: coverURL,
		BookURL:  bookURL,
	}
	if err := s.repo.Insert(ctx, &b); err != nil {
		s.discard(ctx, "create", coverURL, bookURL)
		return Book{}, apperr.Wrap("create book", err)
	}
	return b, nil
}

// Find returns the book or nil when there is none.
func (s *Service) Find(ctx context.Context, id string) (*Book, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap("find book", err)
	}
	return &b, nil
}

// ListPage returns a 1-based page of the catalog, optionally limited to
// one author.
func (s *Service) ListPage(ctx context.Context, page int, authorID string) (Page, error) {
	if page < 1 {
		page = 1
	}
	books, total, err := s.repo.List(ctx, queryForPage(page, authorID))
	if err != nil {
		return Page{}, apperr.Wrap("list books", err)
	}
	if books == nil {
		books = []Book{}
	}
	return Page{Books: books, Pagination: NewPagination(page, total)}, nil
}

// Delete removes the book if userID owns it and returns the removed
// record, or nil when nothing matched. Asset cleanup failures are reported
// but do not fail the call.
func (s *Service) Delete(ctx context.Context, userID, bookID string) (*Book, error) {
	b, err := s.repo.DeleteOwned(ctx, bookID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap("delete book", err)
	}
	s.discard(ctx, "delete", b.CoverURL, b.BookURL)
	return &b, nil
}

// Update applies a partial update. Replacement assets are uploaded before
// the record changes and old assets are removed only after it has.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Book, error) {
	current, err := s.repo.FindByID(ctx, in.BookID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Book not found")
		}
		return nil, apperr.Wrap("update book", err)
	}
	if current.Author.ID != in.UserID {
		return nil, apperr.Ownership("You are not allowed to modify this book")
	}

	next := current
	if t := strings.TrimSpace(in.Title); t != "" {
		next.Title = t
	}
	if g := strings.TrimSpace(in.Genre); g != "" {
		next.Genre = g
	}
	if err := validateFields(Fields{Title: next.Title, Genre: next.Genre}); err != nil {
		return nil, err
	}

	var newCover, newBook string
	var g errgroup.Group
	if in.Cover != nil {
		g.Go(func() error {
			var err error
			newCover, err = s.put(ctx, blobstore.CoverKey(in.Cover.Filename), *in.Cover)
			return err
		})
	}
	if in.Content != nil {
		g.Go(func() error {
			var err error
			newBook, err = s.put(ctx, blobstore.BookKey(), *in.Content)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.discard(ctx, "update", newCover, newBook)
		return nil, apperr.Upstream("Failed to upload book assets", err)
	}

	var stale []string
	if newCover != "" {
		stale = append(stale, current.CoverURL)
		next.CoverURL = newCover
	}
	if newBook != "" {
		stale = append(stale, current.BookURL)
		next.BookURL = newBook
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		s.discard(ctx, "update", newCover, newBook)
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Book not found")
		}
		return nil, apperr.Wrap("update book", err)
	}

	s.discard(ctx, "update", stale...)
	return &next, nil
}

func (s *Service) put(ctx context.Context, key string, a Asset) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.blobTimeout)
	defer cancel()
	return s.blobs.Put(ctx, key, a.Body, a.ContentType)
}

// discard deletes blobs that no record references any more. It keeps
// going after a client disconnect and only logs failures.
func (s *Service) discard(ctx context.Context, op string, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.blobTimeout)
		err := s.blobs.Delete(dctx, url)
		cancel()
		if err != nil {
			httpx.LoggerFromOr(ctx, s.log).Error("orphaned blob",
				zap.String("op", op),
				zap.String("url", url),
				zap.Error(err))
			raven.CaptureError(err, map[string]string{"op": op, "url": url})
		}
	}
}
