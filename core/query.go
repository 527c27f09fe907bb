package core

import (
	"os"
	"sort"
	"strconv"
)

// Constants for pagination
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SortDirection represents the sort order
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortField represents a field to sort by
type SortField struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Pagination represents pagination parameters. A zero Limit means unbounded.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Query represents a comprehensive query with filters, sorting, and pagination
type Query struct {
	Filter     Filter      `json:"filter"`
	Sort       []SortField `json:"sort"`
	Pagination Pagination  `json:"pagination"`
}

// NewQuery creates a new unbounded Query
func NewQuery() *Query {
	return &Query{
		Sort: []SortField{},
	}
}

// Where ANDs the given filter into the query
func (q *Query) Where(f Filter) *Query {
	q.Filter = And(q.Filter, f)
	return q
}

// WithSort adds a sort field to the query
func (q *Query) WithSort(field string, direction SortDirection) *Query {
	q.Sort = append(q.Sort, SortField{
		Field:     field,
		Direction: direction,
	})
	return q
}

// WithPage sets pagination from a 1-based page number and a page size
func (q *Query) WithPage(page, limit int) *Query {
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if limit <= 0 {
		limit = getPageSizeFromEnv()
	}
	if page < 1 {
		page = 1
	}

	q.Pagination.Limit = limit
	q.Pagination.Offset = (page - 1) * limit
	return q
}

// IsPaginated reports whether the query limits its result set
func (q *Query) IsPaginated() bool {
	return q.Pagination.Limit > 0
}

// GetCurrentPage returns the current page number (1-indexed)
func (q *Query) GetCurrentPage() int {
	if q.Pagination.Limit <= 0 {
		return 1
	}
	return (q.Pagination.Offset / q.Pagination.Limit) + 1
}

// HasSort returns true if the query has sorting
func (q *Query) HasSort() bool {
	return len(q.Sort) > 0
}

// getPageSizeFromEnv gets page size from environment variable or default
func getPageSizeFromEnv() int {
	if envSize := os.Getenv("DANCEFLOW_PAGE_SIZE"); envSize != "" {
		if size, err := strconv.Atoi(envSize); err == nil && size > 0 && size <= MaxPageSize {
			return size
		}
	}
	return DefaultPageSize
}

// IsValid checks if the sort direction is valid
func (sd SortDirection) IsValid() bool {
	return sd == SortAsc || sd == SortDesc
}

// SortDocuments orders docs in place by the given fields. Missing values sort
// first in ascending order. The sort is stable so ties keep store order.
func SortDocuments(docs []Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			a, _ := Lookup(docs[i], f.Field)
			b, _ := Lookup(docs[j], f.Field)
			cmp := orderValues(a, b)
			if cmp == 0 {
				continue
			}
			if f.Direction == SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// Paginate returns the window of docs selected by p
func Paginate(docs []Document, p Pagination) []Document {
	if p.Offset >= len(docs) {
		return []Document{}
	}
	if p.Offset > 0 {
		docs = docs[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(docs) {
		docs = docs[:p.Limit]
	}
	return docs
}

// orderValues gives a total order over document values: nil < bool < number < string
func orderValues(a, b any) int {
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return ra - rb
	}
	if ab, ok := a.(bool); ok {
		bb := b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	}
	return 0
}

func rankOf(v any) int {
	switch Normalize(v).(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}
