package core

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Patch is a typed partial record: Value holds the decoded fields and the
// field set records which document keys the caller actually supplied.
type Patch[T any] struct {
	Value  T
	fields map[string]struct{}
}

// NewPatch creates a patch over v marking the given document keys as present
func NewPatch[T any](v T, fields ...string) Patch[T] {
	p := Patch[T]{Value: v, fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		p.fields[f] = struct{}{}
	}
	return p
}

// Has reports whether the document key is part of the patch
func (p Patch[T]) Has(field string) bool {
	_, ok := p.fields[field]
	return ok
}

// Set marks a document key as present. Hooks call it after changing Value.
func (p *Patch[T]) Set(field string) {
	if p.fields == nil {
		p.fields = make(map[string]struct{})
	}
	p.fields[field] = struct{}{}
}

// Unset removes a document key from the patch
func (p *Patch[T]) Unset(field string) {
	delete(p.fields, field)
}

// Fields returns the present document keys in sorted order
func (p Patch[T]) Fields() []string {
	out := make([]string, 0, len(p.fields))
	for f := range p.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of present fields
func (p Patch[T]) Len() int {
	return len(p.fields)
}

// Document renders only the present fields as a merge document.
// Each field is encoded on its own so omitempty tags cannot drop a present zero value.
func (p Patch[T]) Document() (Document, error) {
	fs := discoverFields(reflect.TypeOf(p.Value))
	rv := reflect.ValueOf(p.Value)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	doc := make(Document, len(p.fields))
	for name := range p.fields {
		info, ok := fs.get(name)
		if !ok {
			return nil, fmt.Errorf("patch field %q is not part of %s", name, rv.Type().Name())
		}
		raw, err := json.Marshal(rv.FieldByIndex(info.Index).Interface())
		if err != nil {
			return nil, fmt.Errorf("encoding patch field %q: %w", name, err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding patch field %q: %w", name, err)
		}
		doc[name] = v
	}
	return doc, nil
}

// ToDocument converts a record into its stored document form
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a stored document into a record
func FromDocument[T any](doc Document) (T, error) {
	var v T
	raw, err := json.Marshal(doc)
	if err != nil {
		return v, fmt.Errorf("encoding document: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decoding document: %w", err)
	}
	return v, nil
}
