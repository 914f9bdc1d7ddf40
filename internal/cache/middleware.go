package cache

import (
	"bytes"
	"net/http"
)

const headerCache = "X-Cache"

// recorder tees the response so a 200 can be stored after the handler
// returns.
type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (rec *recorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	rec.buf.Write(b)
	return rec.ResponseWriter.Write(b)
}

// Middleware serves GET requests from the cache when it can. On a miss the
// wrapped handler runs and its body is stored if the status is 200.
// Non-GET requests pass straight through. A body computed while the
// namespace was invalidated is served but not stored.
func (l *Layer) Middleware(namespace string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := Key(namespace, r.URL.Path, r.URL.Query())
			gen := l.Generation(namespace)
			if body, ok := l.Get(r.Context(), key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(headerCache, "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}

			w.Header().Set(headerCache, "MISS")
			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusOK {
				l.SetIfCurrent(r.Context(), namespace, gen, key, rec.buf.Bytes(), l.ttl)
			}
		})
	}
}
