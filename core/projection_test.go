package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjection(t *testing.T) {
	doc := Document{"id": "u1", "name": "Ana", "email": "ana@example.com", "password": "hash"}

	excl := Projection{"password": false}
	assert.Equal(t, Document{"id": "u1", "name": "Ana", "email": "ana@example.com"}, excl.Apply(doc))

	incl := Projection{"name": true}
	assert.Equal(t, Document{"id": "u1", "name": "Ana"}, incl.Apply(doc), "id is always kept")

	assert.Equal(t, doc, Projection(nil).Apply(doc))
	assert.Contains(t, doc, "password", "the input is not modified")

	all := excl.ApplyAll([]Document{doc, {"id": "u2", "password": "x"}})
	assert.Len(t, all, 2)
	assert.NotContains(t, all[1], "password")
}
