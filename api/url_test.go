package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListURL(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *ListURLBuilder
		expected string
	}{
		{"bare path", func() *ListURLBuilder { return NewListURL("/events") }, "/events"},
		{"page", func() *ListURLBuilder { return NewListURL("/events").WithPage(2, 10) }, "/events?limit=10&page=2"},
		{"param", func() *ListURLBuilder { return NewListURL("/events").WithParam("tag", "salsa") }, "/events?tag=salsa"},
		{"empty key", func() *ListURLBuilder { return NewListURL("/events").WithParam("", "x") }, "/events"},
		{"removed", func() *ListURLBuilder {
			return NewListURL("/events").WithParam("tag", "salsa").RemoveParam("tag")
		}, "/events"},
		{"escaped", func() *ListURLBuilder { return NewListURL("/posts").WithParam("q", "a&b") }, "/posts?q=a%26b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.build().String())
		})
	}
}

func TestPreserveFromRequestSkipsPagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/events?city=Porto&page=3&LIMIT=5&tag=tango", nil)
	got := NewListURL(r.URL.Path).PreserveFromRequest(r).String()
	assert.Equal(t, "/events?city=Porto&tag=tango", got)
}

func TestLinkHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/events?city=Porto&page=2&limit=10", nil)

	tests := []struct {
		name     string
		page     int
		limit    int
		total    int64
		expected string
	}{
		{
			name: "middle page", page: 2, limit: 10, total: 35,
			expected: `</events?city=Porto&limit=10&page=1>; rel="first", ` +
				`</events?city=Porto&limit=10&page=1>; rel="prev", ` +
				`</events?city=Porto&limit=10&page=3>; rel="next", ` +
				`</events?city=Porto&limit=10&page=4>; rel="last"`,
		},
		{
			name: "single page", page: 1, limit: 10, total: 4,
			expected: `</events?city=Porto&limit=10&page=1>; rel="first", ` +
				`</events?city=Porto&limit=10&page=1>; rel="last"`,
		},
		{
			name: "past the end", page: 9, limit: 10, total: 12,
			expected: `</events?city=Porto&limit=10&page=1>; rel="first", ` +
				`</events?city=Porto&limit=10&page=2>; rel="prev", ` +
				`</events?city=Porto&limit=10&page=2>; rel="last"`,
		},
		{name: "unpaginated", page: 1, limit: 0, total: 12, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LinkHeader(r, tt.page, tt.limit, tt.total))
		})
	}
}
