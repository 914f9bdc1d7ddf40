package book

import "strconv"

// PageSize is the fixed number of books per page.
const PageSize = 10

// Pagination is the metadata returned with every listing page.
type Pagination struct {
	CurrentPage     int  `json:"currentPage"`
	TotalBooks      int  `json:"totalBooks"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	Limit           int  `json:"limit"`
}

// Page is one page of the catalog.
type Page struct {
	Books      []Book     `json:"books"`
	Pagination Pagination `json:"pagination"`
}

// ParsePage reads a page query parameter. Anything that is not a number
// above zero means the first page.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// NewPagination computes the metadata for page out of total books.
func NewPagination(page, total int) Pagination {
	if page < 1 {
		page = 1
	}
	totalPages := (total + PageSize - 1) / PageSize
	return Pagination{
		CurrentPage:     page,
		TotalBooks:      total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
		Limit:           PageSize,
	}
}

// queryForPage builds the store query for a 1-based page.
func queryForPage(page int, authorID string) Query {
	if page < 1 {
		page = 1
	}
	return Query{
		AuthorID: authorID,
		Limit:    PageSize,
		Offset:   (page - 1) * PageSize,
	}
}
