package httpx

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"bookshelf/internal/apperr"
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Details    []apperr.Detail `json:"details,omitempty"`
	ErrorStack string          `json:"errorStack,omitempty"`
}

var exposeErrorStack atomic.Bool

// ExposeErrorStack controls whether error responses carry the underlying
// error chain. Only enabled in development.
func ExposeErrorStack(on bool) {
	exposeErrorStack.Store(on)
}

// JSON writes v with the given status and no envelope.
func JSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func JSONSuccess(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, SuccessResponse{Success: true, Data: data})
}

func JSONSuccessCreated(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

func JSONSuccessNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func JSONError(w http.ResponseWriter, statusCode int, code string, message string, details []apperr.Detail) {
	JSON(w, statusCode, ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteError renders err as the error envelope. Server side failures are
// logged with the request logger; their cause is never shown to clients
// unless ExposeErrorStack is on.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.As(err)
	status := ae.Kind.Status()

	if status >= http.StatusInternalServerError {
		LoggerFrom(r.Context()).Error("request failed",
			zap.Int("status", status),
			zap.String("code", ae.Code),
			zap.Error(err),
		)
	}

	resp := ErrorResponse{
		Success: false,
		Message: ae.Message,
		Code:    ae.Code,
		Details: ae.Details,
	}
	if exposeErrorStack.Load() && ae.Err != nil {
		resp.ErrorStack = ae.Error()
	}
	JSON(w, status, resp)
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}
