package cache

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		query url.Values
		want  string
	}{
		{"no query", "/books", nil, "book:/books?"},
		{"trailing slash and case", "/Books/", nil, "book:/books?"},
		{"root", "/", nil, "book:/?"},
		{"sorted pairs", "/books", url.Values{"page": {"2"}, "author": {"abc"}}, "book:/books?author:abc&page:2"},
		{"repeated key", "/books", url.Values{"page": {"3", "1"}}, "book:/books?page:1&page:3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key("book", tt.path, tt.query))
		})
	}
}

func TestKey_ParameterOrderIrrelevant(t *testing.T) {
	a, _ := url.ParseQuery("page=2&author=x")
	b, _ := url.ParseQuery("author=x&page=2")
	assert.Equal(t, Key("book", "/books", a), Key("book", "/books", b))
}

func TestKey_DistinctQueriesDiffer(t *testing.T) {
	a, _ := url.ParseQuery("page=1")
	b, _ := url.ParseQuery("page=2")
	assert.NotEqual(t, Key("book", "/books", a), Key("book", "/books", b))
}
