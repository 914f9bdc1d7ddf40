package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Memory implements an in-memory Store. It is intended mainly for tests and
// for running the API without object storage. It also serves its blobs over
// HTTP so URLs it hands out can be fetched through httptest.
type Memory struct {
	m       sync.RWMutex
	baseURL string
	store   map[string]memBlob

	puts    int
	deletes int

	// FailPut, when set, is consulted before every Put. A non-nil result is
	// returned as the upload error.
	FailPut func(key string) error
	// FailDelete works like FailPut for Delete.
	FailDelete func(url string) error
}

type memBlob struct {
	data        []byte
	contentType string
}

var _ Store = (*Memory)(nil)

// NewMemory returns a new, empty memory store whose URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		store:   make(map[string]memBlob),
	}
}

// SetBaseURL changes the prefix for URLs returned by later Puts. Used when
// the HTTP server for the store is only started after construction.
func (ms *Memory) SetBaseURL(base string) {
	ms.m.Lock()
	ms.baseURL = strings.TrimSuffix(base, "/")
	ms.m.Unlock()
}

func (ms *Memory) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ms.FailPut != nil {
		if err := ms.FailPut(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("memory put %s: %w", key, err)
	}
	ms.m.Lock()
	defer ms.m.Unlock()
	ms.store[key] = memBlob{data: data, contentType: contentType}
	ms.puts++
	return ms.baseURL + "/" + key, nil
}

func (ms *Memory) Delete(ctx context.Context, url string) error {
	if ms.FailDelete != nil {
		if err := ms.FailDelete(url); err != nil {
			return err
		}
	}
	ms.m.Lock()
	defer ms.m.Unlock()
	key, ok := keyFromURL(ms.baseURL, url)
	if !ok {
		return fmt.Errorf("memory delete %q: %w", url, ErrNotFound)
	}
	delete(ms.store, key)
	ms.deletes++
	return nil
}

// Has reports whether the blob behind url is present.
func (ms *Memory) Has(url string) bool {
	ms.m.RLock()
	defer ms.m.RUnlock()
	key, ok := keyFromURL(ms.baseURL, url)
	if !ok {
		return false
	}
	_, ok = ms.store[key]
	return ok
}

// Len returns the number of stored blobs.
func (ms *Memory) Len() int {
	ms.m.RLock()
	defer ms.m.RUnlock()
	return len(ms.store)
}

// Puts returns the number of successful uploads so far.
func (ms *Memory) Puts() int {
	ms.m.RLock()
	defer ms.m.RUnlock()
	return ms.puts
}

// ServeHTTP serves GET /<key>.
func (ms *Memory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	ms.m.RLock()
	b, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if b.contentType != "" {
		w.Header().Set("Content-Type", b.contentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(b.data)))
	_, _ = w.Write(b.data)
}
