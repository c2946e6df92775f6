package models

const (
	// DefaultPageSize applies when a caller omits or zeroes the limit.
	DefaultPageSize = 10
	// MaxPageSize caps client-supplied limits.
	MaxPageSize = 100
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

// NormalizePage clamps a 1-based page number.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// NormalizeLimit clamps the page size into [1, MaxPageSize], defaulting when unset.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// NewPagination computes page-count metadata for a result set.
func NewPagination(page, limit, total int) *Pagination {
	page = NormalizePage(page)
	limit = NormalizeLimit(limit)
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return &Pagination{Current: page, Pages: pages, Total: total}
}
