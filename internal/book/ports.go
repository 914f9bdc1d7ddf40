package book

import (
	"context"
	"io"
)

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=book

// Repository defines the contract for book data storage. Reads join the
// author's display fields.
type Repository interface {
	// Insert stores b and fills in its id and timestamps. b.Author.ID must
	// be set.
	Insert(ctx context.Context, b *Book) error
	FindByID(ctx context.Context, id string) (Book, error)
	// List returns one page of books, newest update first, and the total
	// number of books matching the filter.
	List(ctx context.Context, q Query) ([]Book, int, error)
	// Update writes title, genre and both locators of b if b.Author.ID
	// still owns it, and refreshes b.UpdatedAt. It returns ErrNotFound
	// otherwise.
	Update(ctx context.Context, b *Book) error
	// DeleteOwned removes the book only when authorID owns it and returns
	// the removed record, or ErrNotFound when nothing matched.
	DeleteOwned(ctx context.Context, id, authorID string) (Book, error)
}

// BlobStore keeps the cover and content assets.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Invalidator drops cached listings after a write.
type Invalidator interface {
	InvalidateNamespace(ctx context.Context, namespace string)
}
