package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindAuthentication, http.StatusUnauthorized},
		{KindOwnership, http.StatusForbidden},
		{KindConflict, http.StatusConflict},
		{KindUpstream, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}

func TestAs(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, As(nil))
	})

	t.Run("classified error passes through wrapping", func(t *testing.T) {
		nf := NotFound("book not found")
		wrapped := fmt.Errorf("lookup: %w", nf)

		got := As(wrapped)
		assert.Same(t, nf, got)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("connection reset")
		got := As(cause)

		assert.Equal(t, KindInternal, got.Kind)
		assert.ErrorIs(t, got, cause)
	})
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("create", nil))

	own := Ownership("not the author")
	assert.Same(t, own, Wrap("update", own))

	cause := errors.New("boom")
	err := Wrap("delete", cause)
	assert.True(t, IsKind(err, KindInternal))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "delete failed")
}
