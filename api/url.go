package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ListURLBuilder provides a fluent interface for building list URLs
type ListURLBuilder struct {
	basePath string
	params   url.Values
}

// NewListURL creates a new URL builder for the given request path
func NewListURL(path string) *ListURLBuilder {
	return &ListURLBuilder{
		basePath: path,
		params:   make(url.Values),
	}
}

// PreserveFromRequest copies the request's query parameters, skipping
// pagination which the builder sets itself
func (b *ListURLBuilder) PreserveFromRequest(r *http.Request) *ListURLBuilder {
	for k, v := range r.URL.Query() {
		if !isPaginationParam(k) {
			b.params[k] = v
		}
	}
	return b
}

// WithPage sets page and limit parameters
func (b *ListURLBuilder) WithPage(page, limit int) *ListURLBuilder {
	b.params.Set("page", strconv.Itoa(page))
	b.params.Set("limit", strconv.Itoa(limit))
	return b
}

// WithParam sets an arbitrary parameter
func (b *ListURLBuilder) WithParam(key, value string) *ListURLBuilder {
	if key != "" {
		b.params.Set(key, value)
	}
	return b
}

// RemoveParam removes a parameter
func (b *ListURLBuilder) RemoveParam(key string) *ListURLBuilder {
	b.params.Del(key)
	return b
}

// String builds and returns the final URL
func (b *ListURLBuilder) String() string {
	if len(b.params) == 0 {
		return b.basePath
	}
	return b.basePath + "?" + b.params.Encode()
}

// LinkHeader builds an RFC 8288 Link header value with first, prev, next and
// last relations for a paginated list
func LinkHeader(r *http.Request, page, limit int, total int64) string {
	if limit <= 0 {
		return ""
	}
	last := int((total + int64(limit) - 1) / int64(limit))
	if last < 1 {
		last = 1
	}

	link := func(p int, rel string) string {
		u := NewListURL(r.URL.Path).PreserveFromRequest(r).WithPage(p, limit)
		return `<` + u.String() + `>; rel="` + rel + `"`
	}

	parts := []string{link(1, "first")}
	if page > 1 {
		parts = append(parts, link(min(page-1, last), "prev"))
	}
	if page < last {
		parts = append(parts, link(page+1, "next"))
	}
	parts = append(parts, link(last, "last"))
	return strings.Join(parts, ", ")
}

func isPaginationParam(key string) bool {
	return strings.EqualFold(key, "page") || strings.EqualFold(key, "limit")
}
