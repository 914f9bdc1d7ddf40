package httpx

import (
	"fmt"
	"net/http"

	raven "github.com/getsentry/raven-go"
	"go.uber.org/zap"

	"bookshelf/internal/apperr"
)

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		}
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				LoggerFrom(r.Context()).Error("panic recovered", zap.Error(err), zap.Stack("stack"))
				raven.CaptureError(err, map[string]string{"request_id": RequestIDFrom(r), "path": r.URL.Path})

				if !rw.wroteHeader() {
					WriteError(rw, r, apperr.Internal("An internal error occurred", err))
				}
			}
		}()
		next.ServeHTTP(rw, r)
	})
}
