package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryWithPage(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		limit      int
		wantLimit  int
		wantOffset int
	}{
		{"first page", 1, 10, 10, 0},
		{"third page", 3, 10, 10, 20},
		{"page below one", 0, 10, 10, 0},
		{"limit capped", 2, 500, MaxPageSize, MaxPageSize},
		{"default limit", 2, 0, DefaultPageSize, DefaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuery().WithPage(tt.page, tt.limit)
			assert.True(t, q.IsPaginated())
			assert.Equal(t, tt.wantLimit, q.Pagination.Limit)
			assert.Equal(t, tt.wantOffset, q.Pagination.Offset)
		})
	}
}

func TestPageSizeFromEnv(t *testing.T) {
	t.Setenv("DANCEFLOW_PAGE_SIZE", "7")
	assert.Equal(t, 7, NewQuery().WithPage(1, 0).Pagination.Limit)

	t.Setenv("DANCEFLOW_PAGE_SIZE", "9999")
	assert.Equal(t, DefaultPageSize, NewQuery().WithPage(1, 0).Pagination.Limit)
}

func TestQueryGetCurrentPage(t *testing.T) {
	assert.Equal(t, 1, NewQuery().GetCurrentPage())
	assert.Equal(t, 4, NewQuery().WithPage(4, 5).GetCurrentPage())
	assert.False(t, NewQuery().IsPaginated())
}

func TestQueryWhereAnds(t *testing.T) {
	q := NewQuery().Where(Eq("a", 1))
	assert.Equal(t, OpEq, q.Filter.Op)

	q.Where(Eq("b", 2))
	assert.Equal(t, OpAnd, q.Filter.Op)
	assert.Len(t, q.Filter.Children, 2)
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"id": "1", "name": "b", "rank": float64(2)},
		{"id": "2", "name": "a", "rank": float64(2)},
		{"id": "3", "name": "c"},
		{"id": "4", "name": "a", "rank": float64(1)},
	}

	SortDocuments(docs, []SortField{{Field: "rank", Direction: SortAsc}, {Field: "name", Direction: SortAsc}})
	assert.Equal(t, []string{"3", "4", "2", "1"}, docIDs(docs))

	SortDocuments(docs, []SortField{{Field: "name", Direction: SortDesc}})
	assert.Equal(t, []string{"3", "1", "4", "2"}, docIDs(docs), "ties keep their previous order")
}

func TestPaginate(t *testing.T) {
	docs := []Document{{"id": "1"}, {"id": "2"}, {"id": "3"}}
	assert.Equal(t, []string{"2", "3"}, docIDs(Paginate(docs, Pagination{Offset: 1})))
	assert.Equal(t, []string{"1", "2"}, docIDs(Paginate(docs, Pagination{Limit: 2})))
	assert.Empty(t, Paginate(docs, Pagination{Limit: 2, Offset: 3}))
}

func TestSortDirectionIsValid(t *testing.T) {
	assert.True(t, SortAsc.IsValid())
	assert.True(t, SortDesc.IsValid())
	assert.False(t, SortDirection("up").IsValid())
}

func docIDs(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}
