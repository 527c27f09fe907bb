package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Gateway when no document matches the given identity
var ErrNotFound = errors.New("record not found")

// Document is a single stored record. It always carries an "id" once persisted.
type Document map[string]any

// ID returns the document identity, or an empty string if it has none yet
func (d Document) ID() string {
	if id, ok := d["id"].(string); ok {
		return id
	}
	return ""
}

// Clone returns a shallow copy of the document
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Gateway defines the interface for document store adapters.
// Implementations guarantee single-document atomicity only.
type Gateway interface {
	// Find returns the documents matching the query and the total match count
	// before pagination is applied
	Find(ctx context.Context, collection string, query *Query) ([]Document, int64, error)

	// FindOne returns the document with the given identity or ErrNotFound
	FindOne(ctx context.Context, collection string, id string) (Document, error)

	// Insert stores a new document. The gateway assigns the identity and
	// returns the stored document.
	Insert(ctx context.Context, collection string, doc Document) (Document, error)

	// UpdateOne merges patch into the document with the given identity.
	// Present keys replace, nested objects merge, nil values remove keys.
	UpdateOne(ctx context.Context, collection string, id string, patch Document) error

	// UpdateMany merges patch into every document matching filter and
	// returns the number of documents changed
	UpdateMany(ctx context.Context, collection string, filter Filter, patch Document) (int64, error)

	// DeleteOne removes the document with the given identity or returns ErrNotFound
	DeleteOne(ctx context.Context, collection string, id string) error

	Close() error
}

// MergePatch applies an RFC 7396 merge patch to target in place and returns it
func MergePatch(target Document, patch Document) Document {
	if target == nil {
		target = Document{}
	}
	for k, v := range patch {
		if v == nil {
			delete(target, k)
			continue
		}
		if pm, ok := asObject(v); ok {
			tm, _ := asObject(target[k])
			target[k] = map[string]any(MergePatch(Document(cloneObject(tm)), Document(pm)))
			continue
		}
		target[k] = v
	}
	return target
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
