// Package proxy streams book assets under the API's own routes so clients
// never see where the blobs are stored.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"bookshelf/internal/apperr"
	"bookshelf/internal/book"
	"bookshelf/internal/httpx"
	"bookshelf/internal/metrics"
)

const coverCacheControl = "public, max-age=31536000, immutable"

// Finder resolves a book id. A nil book means there is none.
type Finder interface {
	Find(ctx context.Context, id string) (*book.Book, error)
}

type HTTPHandler struct {
	books   Finder
	client  *http.Client
	metrics *metrics.Metrics
}

// NewHTTPHandler returns a handler whose upstream fetches give up after
// timeout.
func NewHTTPHandler(books Finder, timeout time.Duration, m *metrics.Metrics) *HTTPHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPHandler{
		books:   books,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}
}

// ProxyFile handles GET /books/proxy/file/{bookId}
// @Summary Stream a book's PDF
// @Tags books
// @Produce application/pdf
// @Param bookId path string true "Book ID"
// @Success 200 {file} binary
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /books/proxy/file/{bookId} [get]
func (h *HTTPHandler) ProxyFile(w http.ResponseWriter, r *http.Request) {
	b, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if b.BookURL == "" {
		httpx.WriteError(w, r, apperr.NotFound("Book file not found"))
		return
	}

	resp, err := h.fetch(r.Context(), b.BookURL)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", SanitizeFilename(b.Title)+".pdf"))
	h.stream(w, r, resp)
}

// ProxyCover handles GET /books/proxy/cover/{bookId}
// @Summary Stream a book's cover image
// @Tags books
// @Produce image/jpeg
// @Param bookId path string true "Book ID"
// @Success 200 {file} binary
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /books/proxy/cover/{bookId} [get]
func (h *HTTPHandler) ProxyCover(w http.ResponseWriter, r *http.Request) {
	b, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if b.CoverURL == "" {
		httpx.WriteError(w, r, apperr.NotFound("Book cover not found"))
		return
	}

	resp, err := h.fetch(r.Context(), b.CoverURL)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", coverCacheControl)
	h.stream(w, r, resp)
}

func (h *HTTPHandler) resolve(w http.ResponseWriter, r *http.Request) (*book.Book, bool) {
	id, err := book.ParseID(r.PathValue("bookId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	b, err := h.books.Find(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	if b == nil {
		httpx.WriteError(w, r, apperr.NotFound("Book not found"))
		return nil, false
	}
	return b, true
}

// fetch GETs url. Anything but a 2xx response is an upstream error and the
// body is discarded.
func (h *HTTPHandler) fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Internal("build upstream request", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.metrics.BlobOp("fetch", err)
		return nil, apperr.Upstream("Failed to fetch asset", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		err := fmt.Errorf("upstream responded %d", resp.StatusCode)
		h.metrics.BlobOp("fetch", err)
		return nil, apperr.Upstream("Failed to fetch asset", err)
	}
	h.metrics.BlobOp("fetch", nil)
	return resp, nil
}

// stream copies the upstream body. Once the status line is out an error
// can only be logged.
func (h *HTTPHandler) stream(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", fmt.Sprint(resp.ContentLength))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil && !errors.Is(err, context.Canceled) {
		httpx.LoggerFrom(r.Context()).Warn("proxy stream interrupted", zap.Error(err))
	}
}

// SanitizeFilename turns a title into something safe for a
// Content-Disposition filename.
func SanitizeFilename(title string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r > unicode.MaxASCII:
			sb.WriteRune('_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteRune(' ')
		default:
			sb.WriteRune('_')
		}
	}
	name := strings.Trim(sb.String(), ". ")
	if name == "" {
		return "book"
	}
	return name
}
