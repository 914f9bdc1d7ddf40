package book

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a book is not found.
var ErrNotFound = errors.New("book not found")

// Namespace prefixes every cached listing key.
const Namespace = "book"

// Genres is the fixed set a book's genre must belong to.
var Genres = []string{
	"fiction",
	"non-fiction",
	"fantasy",
	"science-fiction",
	"mystery",
	"romance",
	"biography",
	"history",
	"science",
	"technology",
	"self-help",
	"poetry",
	"children",
}

func IsGenre(s string) bool {
	for _, g := range Genres {
		if g == s {
			return true
		}
	}
	return false
}

// Author is the display form of a book's author, joined from users.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Book represents a book entity.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Genre     string    `json:"genre"`
	Author    Author    `json:"author"`
	CoverURL  string    `json:"coverUrl"`
	BookURL   string    `json:"bookUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields are the validated, user supplied attributes of a book.
type Fields struct {
	Title string `json:"title" validate:"required,min=2,max=80"`
	Genre string `json:"genre" validate:"required,genre"`
}

// Query selects one page of the catalog.
type Query struct {
	AuthorID string
	Limit    int
	Offset   int
}
