// Package gatewaytest provides a behavioral test suite shared by every
// core.Gateway implementation
package gatewaytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceflow/danceflow/core"
)

// Factory returns a fresh, empty gateway for one test
type Factory func(t *testing.T) core.Gateway

// Run executes the gateway contract against gateways built by newGateway
func Run(t *testing.T, newGateway Factory) {
	t.Run("InsertAndFindOne", func(t *testing.T) { testInsertAndFindOne(t, newGateway(t)) })
	t.Run("UpdateOneMerges", func(t *testing.T) { testUpdateOne(t, newGateway(t)) })
	t.Run("DeleteOne", func(t *testing.T) { testDeleteOne(t, newGateway(t)) })
	t.Run("FindFilters", func(t *testing.T) { testFindFilters(t, newGateway(t)) })
	t.Run("FindSortAndPage", func(t *testing.T) { testFindSortAndPage(t, newGateway(t)) })
	t.Run("UpdateMany", func(t *testing.T) { testUpdateMany(t, newGateway(t)) })
	t.Run("CollectionsAreIsolated", func(t *testing.T) { testIsolation(t, newGateway(t)) })
}

func insert(t *testing.T, gw core.Gateway, collection string, doc core.Document) core.Document {
	t.Helper()
	stored, err := gw.Insert(context.Background(), collection, doc)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID())
	return stored
}

func ids(docs []core.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

func testInsertAndFindOne(t *testing.T, gw core.Gateway) {
	ctx := context.Background()
	a := insert(t, gw, "tags", core.Document{"name": "salsa", "color": "#ff0000"})
	b := insert(t, gw, "tags", core.Document{"name": "bachata"})
	assert.NotEqual(t, a.ID(), b.ID())

	got, err := gw.FindOne(ctx, "tags", a.ID())
	require.NoError(t, err)
	assert.Equal(t, "salsa", got["name"])
	assert.Equal(t, "#ff0000", got["color"])
	assert.Equal(t, a.ID(), got.ID())

	_, err = gw.FindOne(ctx, "tags", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testUpdateOne(t *testing.T, gw core.Gateway) {
	ctx := context.Background()
	ev := insert(t, gw, "events", core.Document{
		"title":    "Social",
		"price":    10.0,
		"image":    "a.png",
		"location": map[string]any{"id": "l1", "name": "Hall", "city": "Lisbon"},
	})

	err := gw.UpdateOne(ctx, "events", ev.ID(), core.Document{
		"price":    12.5,
		"image":    nil,
		"location": map[string]any{"name": "Big Hall"},
	})
	require.NoError(t, err)

	got, err := gw.FindOne(ctx, "events", ev.ID())
	require.NoError(t, err)
	assert.Equal(t, "Social", got["title"], "absent fields are untouched")
	assert.Equal(t, 12.5, got["price"])
	assert.NotContains(t, got, "image", "null removes a field")
	loc := got["location"].(map[string]any)
	assert.Equal(t, "Big Hall", loc["name"])
	assert.Equal(t, "Lisbon", loc["city"], "nested objects merge")
	assert.Equal(t, ev.ID(), got.ID())

	err = gw.UpdateOne(ctx, "events", "missing", core.Document{"price": 1.0})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testDeleteOne(t *testing.T, gw core.Gateway) {
	ctx := context.Background()
	doc := insert(t, gw, "posts", core.Document{"title": "hello"})

	require.NoError(t, gw.DeleteOne(ctx, "posts", doc.ID()))
	assert.ErrorIs(t, gw.DeleteOne(ctx, "posts", doc.ID()), core.ErrNotFound)

	_, err := gw.FindOne(ctx, "posts", doc.ID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testFindFilters(t *testing.T, gw core.Gateway) {
	ctx := context.Background()
	a := insert(t, gw, "events", core.Document{
		"title": "Salsa Night", "price": 10.0, "published": true,
		"tags": []any{"salsa", "social"}, "startsAt": "2025-05-01T20:00:00Z",
		"location": map[string]any{"id": "l1"},
	})
	b := insert(t, gw, "events", core.Document{
		"title": "Bachata Workshop", "price": 25.0, "published": false,
		"tags": []any{"bachata"}, "startsAt": "2025-06-10T18:00:00Z",
		"location": map[string]any{"id": "l2"},
	})
	c := insert(t, gw, "events", core.Document{
		"title": "Kizomba Social", "price": 0.0, "published": true,
		"tags": []any{"kizomba", "social"}, "startsAt": "2025-07-01T21:00:00Z",
	})

	tests := []struct {
		name   string
		filter core.Filter
		want   []string
	}{
		{"all", core.Filter{}, []string{a.ID(), b.ID(), c.ID()}},
		{"eq string", core.Eq("title", "Salsa Night"), []string{a.ID()}},
		{"eq number", core.Eq("price", 25), []string{b.ID()}},
		{"eq bool", core.Eq("published", true), []string{a.ID(), c.ID()}},
		{"ne", core.Ne("published", true), []string{b.ID()}},
		{"contains substring ignores case", core.Contains("title", "social"), []string{c.ID()}},
		{"contains array member", core.Contains("tags", "social"), []string{a.ID(), c.ID()}},
		{"in", core.In("price", 0, 25), []string{b.ID(), c.ID()}},
		{"gte time", core.Gte("startsAt", "2025-06-01T00:00:00Z"), []string{b.ID(), c.ID()}},
		{"lte number", core.Lte("price", 10), []string{a.ID(), c.ID()}},
		{"nested path", core.Eq("location.id", "l2"), []string{b.ID()}},
		{"and", core.And(core.Eq("published", true), core.Gte("price", 5)), []string{a.ID()}},
		{"or", core.Or(core.Eq("price", 25), core.Eq("price", 0)), []string{b.ID(), c.ID()}},
		{"missing field", core.Eq("location.id", "l9"), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, total, err := gw.Find(ctx, "events", core.NewQuery().Where(tt.filter))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(docs))
			assert.Equal(t, int64(len(tt.want)), total)
		})
	}
}

func testFindSortAndPage(t *testing.T, gw core.Gateway) {
	ctx := context.Background()
	var all []string
	for _, name := range []string{"cumbia", "ari", "bolero", "zouk", "forro"} {
		all = append(all, insert(t, gw, "tags", core.Document{"name": name}).ID())
	}

	docs, total, err := gw.Find(ctx, "tags", core.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, all, ids(docs), "default order is insertion order")

	docs, _, err = gw.Find(ctx, "tags", core.NewQuery().WithSort("name", core.SortAsc))
	require.NoError(t, err)
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d["name"].(string)
	}
	assert.Equal(t, []string{"ari", "bolero", "cumbia", "forro", "zouk"}, names)

	docs, total, err = gw.Find(ctx, "tags", core.NewQuery().WithSort("name", core.SortDesc).WithPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), total, "total ignores pagination")
	require.Len(t, docs, 2)
	assert.Equal(t, "cumbia", docs[0]["name"])
	assert.Equal(t, "bolero", docs[1]["name"])

	docs, _, err = gw.Find(ctx, "tags", core.NewQuery().WithPage(4, 2))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testUpdateMany(t *testing.T, gw core.Gateway) {
	ctx := context.Background()
	a := insert(t, gw, "events", core.Document{"title": "A", "location": map[string]any{"id": "l1", "name": "Old"}})
	b := insert(t, gw, "events", core.Document{"title": "B", "location": map[string]any{"id": "l1", "name": "Old"}})
	c := insert(t, gw, "events", core.Document{"title": "C", "location": map[string]any{"id": "l2", "name": "Other"}})

	n, err := gw.UpdateMany(ctx, "events", core.Eq("location.id", "l1"), core.Document{
		"location": map[string]any{"name": "New"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []string{a.ID(), b.ID()} {
		got, err := gw.FindOne(ctx, "events", id)
		require.NoError(t, err)
		loc := got["location"].(map[string]any)
		assert.Equal(t, "New", loc["name"])
		assert.Equal(t, "l1", loc["id"])
	}
	got, err := gw.FindOne(ctx, "events", c.ID())
	require.NoError(t, err)
	assert.Equal(t, "Other", got["location"].(map[string]any)["name"])

	n, err = gw.UpdateMany(ctx, "events", core.Eq("location.id", "nope"), core.Document{"title": "X"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testIsolation(t *testing.T, gw core.Gateway) {
	ctx := context.Background()
	insert(t, gw, "tags", core.Document{"name": "salsa"})

	docs, total, err := gw.Find(ctx, "locations", core.NewQuery())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, total)
}
