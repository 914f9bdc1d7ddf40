// Package testutil holds helpers shared by handler and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookshelf/internal/platform/crypto"
)

// Token signs a bearer token for userID that is valid for an hour.
func Token(t testing.TB, secret, userID string) string {
	t.Helper()
	tok, _, err := crypto.GenerateToken(secret, userID, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// ExpiredToken signs a token that expired a minute ago.
func ExpiredToken(t testing.TB, secret, userID string) string {
	t.Helper()
	tok, _, err := crypto.GenerateToken(secret, userID, -time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// JSONRequest builds a request with body encoded as JSON. An empty token
// sends no Authorization header.
func JSONRequest(t testing.TB, method, path string, body any, token string) *http.Request {
	t.Helper()
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// DecodeBody decodes a recorded JSON response into a generic map.
func DecodeBody(t testing.TB, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}
