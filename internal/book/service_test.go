package book

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/apperr"
	"bookshelf/internal/platform/blobstore"
)

const blobBase = "http://blobs.test"

var (
	alice = Author{ID: uuid.NewString(), Name: "Alice", Email: "alice@example.com"}
	bob   = Author{ID: uuid.NewString(), Name: "Bob", Email: "bob@example.com"}
)

func asset(name, contentType, body string) Asset {
	return Asset{Filename: name, ContentType: contentType, Body: strings.NewReader(body)}
}

func createInput(title, authorID string) CreateInput {
	return CreateInput{
		Fields:   Fields{Title: title, Genre: "fiction"},
		AuthorID: authorID,
		Cover:    asset("cover.png", "image/png", "png-bytes"),
		Content:  asset("book.pdf", "application/pdf", "%PDF-1.4"),
	}
}

func newScenario() (*Service, *memRepo, *blobstore.Memory) {
	repo := newMemRepo(alice, bob)
	blobs := blobstore.NewMemory(blobBase)
	return NewService(repo, blobs, nil, 0), repo, blobs
}

func TestService_Create(t *testing.T) {
	svc, repo, blobs := newScenario()

	b, err := svc.Create(context.Background(), createInput("  Dune  ", alice.ID))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, alice.ID, b.Author.ID)
	assert.True(t, strings.HasPrefix(b.CoverURL, blobBase+"/covers/"))
	assert.True(t, strings.HasSuffix(b.CoverURL, ".png"))
	assert.True(t, strings.HasPrefix(b.BookURL, blobBase+"/books/"))
	assert.True(t, blobs.Has(b.CoverURL))
	assert.True(t, blobs.Has(b.BookURL))

	stored, err := repo.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Author.Name)
}

func TestService_Create_InvalidFieldsTouchNothing(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
	}{
		{name: "title too long", fields: Fields{Title: strings.Repeat("x", 90), Genre: "fiction"}},
		{name: "title too short", fields: Fields{Title: "x", Genre: "fiction"}},
		{name: "missing title", fields: Fields{Genre: "fiction"}},
		{name: "unknown genre", fields: Fields{Title: "Dune", Genre: "cooking"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// no expectations: any call fails the test
			svc := NewService(NewMockRepository(ctrl), NewMockBlobStore(ctrl), nil, 0)

			in := createInput("", alice.ID)
			in.Fields = tt.fields
			_, err := svc.Create(context.Background(), in)

			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestService_Create_UploadFailureRemovesOtherAsset(t *testing.T) {
	svc, repo, blobs := newScenario()
	blobs.FailPut = func(key string) error {
		if strings.HasPrefix(key, "books/") {
			return errors.New("s3 unavailable")
		}
		return nil
	}

	_, err := svc.Create(context.Background(), createInput("Dune", alice.ID))

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
	assert.Equal(t, 0, blobs.Len())
	assert.Equal(t, 0, repo.len())
}

func TestService_Create_InsertFailureRemovesBothAssets(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	blobs := blobstore.NewMemory(blobBase)
	svc := NewService(repo, blobs, nil, 0)

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	_, err := svc.Create(context.Background(), createInput("Dune", alice.ID))

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
	assert.Equal(t, 2, blobs.Puts())
	assert.Equal(t, 0, blobs.Len())
}

func TestService_Create_ConcurrentSameTitle(t *testing.T) {
	svc, repo, _ := newScenario()

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := svc.Create(context.Background(), createInput("Same Title", alice.ID))
			if err == nil {
				ids[i] = b.ID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.NotEmpty(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, repo.len())
}

func TestService_Find(t *testing.T) {
	svc, _, _ := newScenario()
	created, err := svc.Create(context.Background(), createInput("Dune", alice.ID))
	require.NoError(t, err)

	b, err := svc.Find(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, created.ID, b.ID)

	b, err = svc.Find(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestService_Find_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil, nil, 0)

	repo.EXPECT().FindByID(gomock.Any(), "x").Return(Book{}, context.DeadlineExceeded)

	_, err := svc.Find(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_ListPage(t *testing.T) {
	svc, _, _ := newScenario()
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := svc.Create(ctx, createInput("Alice book", alice.ID))
		require.NoError(t, err)
	}
	last, err := svc.Create(ctx, createInput("Bob book", bob.ID))
	require.NoError(t, err)

	t.Run("first page is newest first", func(t *testing.T) {
		page, err := svc.ListPage(ctx, 1, "")
		require.NoError(t, err)
		require.Len(t, page.Books, PageSize)
		assert.Equal(t, last.ID, page.Books[0].ID)
		assert.Equal(t, Pagination{
			CurrentPage: 1, TotalBooks: 13, TotalPages: 2,
			HasNextPage: true, HasPreviousPage: false, Limit: PageSize,
		}, page.Pagination)
	})

	t.Run("page zero equals page one", func(t *testing.T) {
		zero, err := svc.ListPage(ctx, 0, "")
		require.NoError(t, err)
		one, err := svc.ListPage(ctx, 1, "")
		require.NoError(t, err)
		assert.Equal(t, one, zero)
	})

	t.Run("last page", func(t *testing.T) {
		page, err := svc.ListPage(ctx, 2, "")
		require.NoError(t, err)
		assert.Len(t, page.Books, 3)
		assert.False(t, page.Pagination.HasNextPage)
		assert.True(t, page.Pagination.HasPreviousPage)
	})

	t.Run("past the end is empty", func(t *testing.T) {
		page, err := svc.ListPage(ctx, 9, "")
		require.NoError(t, err)
		assert.NotNil(t, page.Books)
		assert.Empty(t, page.Books)
	})

	t.Run("author filter", func(t *testing.T) {
		page, err := svc.ListPage(ctx, 1, bob.ID)
		require.NoError(t, err)
		require.Len(t, page.Books, 1)
		assert.Equal(t, bob.ID, page.Books[0].Author.ID)
		assert.Equal(t, 1, page.Pagination.TotalPages)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("owner removes record and assets", func(t *testing.T) {
		svc, repo, blobs := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)

		removed, err := svc.Delete(ctx, alice.ID, b.ID)
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, b.ID, removed.ID)
		assert.Equal(t, 0, repo.len())
		assert.Equal(t, 0, blobs.Len())
	})

	t.Run("foreign book is left alone", func(t *testing.T) {
		svc, repo, blobs := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)

		removed, err := svc.Delete(ctx, bob.ID, b.ID)
		require.NoError(t, err)
		assert.Nil(t, removed)
		assert.Equal(t, 1, repo.len())
		assert.True(t, blobs.Has(b.CoverURL))
		assert.True(t, blobs.Has(b.BookURL))
	})

	t.Run("asset cleanup failure does not fail the delete", func(t *testing.T) {
		svc, repo, blobs := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)
		blobs.FailDelete = func(string) error { return errors.New("s3 unavailable") }

		removed, err := svc.Delete(ctx, alice.ID, b.ID)
		require.NoError(t, err)
		assert.NotNil(t, removed)
		assert.Equal(t, 0, repo.len())
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("fields only keeps locators", func(t *testing.T) {
		svc, _, blobs := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)

		got, err := svc.Update(ctx, UpdateInput{BookID: b.ID, UserID: alice.ID, Title: "Dune Messiah"})
		require.NoError(t, err)
		assert.Equal(t, "Dune Messiah", got.Title)
		assert.Equal(t, "fiction", got.Genre)
		assert.Equal(t, b.CoverURL, got.CoverURL)
		assert.Equal(t, b.BookURL, got.BookURL)
		assert.Equal(t, 2, blobs.Len())
	})

	t.Run("new cover replaces the old one", func(t *testing.T) {
		svc, repo, blobs := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)

		cover := asset("new.jpg", "image/jpeg", "jpeg-bytes")
		got, err := svc.Update(ctx, UpdateInput{BookID: b.ID, UserID: alice.ID, Cover: &cover})
		require.NoError(t, err)

		assert.NotEqual(t, b.CoverURL, got.CoverURL)
		assert.Equal(t, b.BookURL, got.BookURL)
		assert.False(t, blobs.Has(b.CoverURL))
		assert.True(t, blobs.Has(got.CoverURL))

		stored, err := repo.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, got.CoverURL, stored.CoverURL)
	})

	t.Run("upload failure leaves the book intact", func(t *testing.T) {
		svc, repo, blobs := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)
		blobs.FailPut = func(key string) error {
			if strings.HasPrefix(key, "books/") {
				return errors.New("s3 unavailable")
			}
			return nil
		}

		cover := asset("new.jpg", "image/jpeg", "jpeg-bytes")
		content := asset("new.pdf", "application/pdf", "%PDF-1.7")
		_, err = svc.Update(ctx, UpdateInput{BookID: b.ID, UserID: alice.ID, Title: "Changed", Cover: &cover, Content: &content})

		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
		stored, err := repo.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dune", stored.Title)
		assert.Equal(t, b.CoverURL, stored.CoverURL)
		assert.Equal(t, b.BookURL, stored.BookURL)
		assert.Equal(t, 2, blobs.Len())
		assert.True(t, blobs.Has(b.CoverURL))
		assert.True(t, blobs.Has(b.BookURL))
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		svc, repo, _ := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)

		_, err = svc.Update(ctx, UpdateInput{BookID: b.ID, UserID: bob.ID, Title: "Mine now"})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindOwnership))

		stored, _ := repo.FindByID(ctx, b.ID)
		assert.Equal(t, "Dune", stored.Title)
	})

	t.Run("missing book", func(t *testing.T) {
		svc, _, _ := newScenario()
		_, err := svc.Update(ctx, UpdateInput{BookID: uuid.NewString(), UserID: alice.ID, Title: "x y"})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("invalid genre", func(t *testing.T) {
		svc, _, blobs := newScenario()
		b, err := svc.Create(ctx, createInput("Dune", alice.ID))
		require.NoError(t, err)

		cover := asset("new.jpg", "image/jpeg", "jpeg-bytes")
		_, err = svc.Update(ctx, UpdateInput{BookID: b.ID, UserID: alice.ID, Genre: "cooking", Cover: &cover})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		assert.Equal(t, 2, blobs.Puts())
	})
}

func TestService_Update_PersistFailureRemovesNewAssets(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	blobs := blobstore.NewMemory(blobBase)
	svc := NewService(repo, blobs, nil, 0)

	existing := Book{
		ID: uuid.NewString(), Title: "Dune", Genre: "fiction", Author: alice,
		CoverURL: blobBase + "/covers/old.jpg", BookURL: blobBase + "/books/old.pdf",
	}
	repo.EXPECT().FindByID(gomock.Any(), existing.ID).Return(existing, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	content := asset("new.pdf", "application/pdf", "%PDF-1.7")
	_, err := svc.Update(context.Background(), UpdateInput{BookID: existing.ID, UserID: alice.ID, Content: &content})

	require.Error(t, err)
	assert.Equal(t, 1, blobs.Puts())
	assert.Equal(t, 0, blobs.Len())
}
