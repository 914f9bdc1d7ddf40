package book

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is a Repository on a map, for scenario tests that need real
// state rather than scripted calls.
type memRepo struct {
	mu      sync.Mutex
	books   map[string]Book
	authors map[string]Author
	clock   time.Time
}

func newMemRepo(authors ...Author) *memRepo {
	m := &memRepo{
		books:   map[string]Book{},
		authors: map[string]Author{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, a := range authors {
		m.authors[a.ID] = a
	}
	return m
}

func (m *memRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memRepo) Insert(_ context.Context, b *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.NewString()
	b.CreatedAt = m.tick()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	if a, ok := m.authors[b.Author.ID]; ok {
		stored.Author = a
	}
	m.books[b.ID] = stored
	return nil
}

func (m *memRepo) FindByID(_ context.Context, id string) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (m *memRepo) List(_ context.Context, q Query) ([]Book, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Book
	for _, b := range m.books {
		if q.AuthorID == "" || b.Author.ID == q.AuthorID {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	total := len(all)
	if q.Offset >= total {
		return []Book{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return append([]Book{}, all[q.Offset:end]...), total, nil
}

func (m *memRepo) Update(_ context.Context, b *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.books[b.ID]
	if !ok || cur.Author.ID != b.Author.ID {
		return ErrNotFound
	}
	cur.Title, cur.Genre, cur.CoverURL, cur.BookURL = b.Title, b.Genre, b.CoverURL, b.BookURL
	cur.UpdatedAt = m.tick()
	b.UpdatedAt = cur.UpdatedAt
	m.books[b.ID] = cur
	return nil
}

func (m *memRepo) DeleteOwned(_ context.Context, id, authorID string) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok || b.Author.ID != authorID {
		return Book{}, ErrNotFound
	}
	delete(m.books, id)
	return b, nil
}

func (m *memRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books)
}
