//go:build integration

package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/testutil"
)

func TestPostgresRepo(t *testing.T) {
	repo := NewPostgresRepo(testutil.StartPostgres(t), 5*time.Second)
	ctx := context.Background()

	u := &User{Name: "Tester", Email: "t@x.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEmpty(t, u.ID)

	dup := &User{Name: "Other", Email: "t@x.com", Password: "hash"}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrAlreadyExists)

	got, err := repo.GetByEmail(ctx, "t@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.Password)

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tester", got.Name)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
