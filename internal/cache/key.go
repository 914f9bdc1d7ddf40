package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key builds the cache key for a request in namespace. The path is
// lowercased with any trailing slash removed and query pairs are sorted, so
// the order of parameters never changes the key.
//
//	Key("book", "/Books/", url.Values{"page": {"2"}, "author": {"a"}})
//	// book:/books?author:a&page:2
func Key(namespace, path string, query url.Values) string {
	path = strings.ToLower(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	pairs := make([]string, 0, len(query))
	for k, vs := range query {
		for _, v := range vs {
			pairs = append(pairs, k+":"+v)
		}
	}
	sort.Strings(pairs)

	var b strings.Builder
	b.WriteString(Prefix(namespace))
	b.WriteString(path)
	b.WriteByte('?')
	b.WriteString(strings.Join(pairs, "&"))
	return b.String()
}

// Prefix is the prefix shared by every key in namespace.
func Prefix(namespace string) string {
	return namespace + ":"
}
