// Package blobstore keeps cover images and book files in object storage and
// hands back public URLs for them.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a locator does not resolve to a stored blob.
var ErrNotFound = errors.New("blob not found")

// Store is the blob adapter used by the catalog.
type Store interface {
	// Put uploads body under key and returns its public URL.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// Delete removes the blob behind a URL previously returned by Put.
	// Deleting a missing blob is not an error.
	Delete(ctx context.Context, url string) error
}

const (
	coverPrefix = "covers/"
	bookPrefix  = "books/"
)

// CoverKey returns a fresh key for a cover image, keeping the extension of
// the uploaded file name when it has one.
func CoverKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return coverPrefix + uuid.NewString() + ext
}

// BookKey returns a fresh key for a book file.
func BookKey() string {
	return bookPrefix + uuid.NewString() + ".pdf"
}

// keyFromURL strips base from url. ok is false when url does not live
// under base.
func keyFromURL(base, url string) (key string, ok bool) {
	base = strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(url, base) {
		return "", false
	}
	key = strings.TrimPrefix(url, base)
	return key, key != ""
}
