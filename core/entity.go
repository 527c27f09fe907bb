package core

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/danceflow/danceflow/middleware/auth"
)

// Hook signatures. A nil identity means the caller is anonymous.
type (
	// CreateHook may transform the payload or veto the create by failing
	CreateHook[T any] func(ctx context.Context, v T, who *auth.Identity) (T, error)

	// UpdateHook may transform the patch or veto the update by failing
	UpdateHook[T any] func(ctx context.Context, p Patch[T], who *auth.Identity, id string) (Patch[T], error)

	// DeleteHook vetoes the delete by failing
	DeleteHook func(ctx context.Context, who *auth.Identity, id string) error

	AfterCreateHook[T any] func(ctx context.Context, record T, who *auth.Identity) error
	AfterUpdateHook[T any] func(ctx context.Context, p Patch[T], who *auth.Identity, id string) error
	AfterDeleteHook        func(ctx context.Context, id string, who *auth.Identity) error

	// FilterFunc contributes an additional list filter, ANDed with the
	// caller-supplied one
	FilterFunc func(ctx context.Context, who *auth.Identity, params url.Values) (Filter, error)
)

// Entity is the frozen configuration of one route family
type Entity[T any] struct {
	name        string
	schema      Schema[T]
	auth        bool
	roles       map[string]struct{}
	publicReads bool
	projection  map[string]bool
	sort        []SortField
	searchable  []string
	filters     FilterFunc
	paramName   string
	fields      fieldSet

	beforeCreate CreateHook[T]
	beforeUpdate UpdateHook[T]
	beforeDelete DeleteHook
	afterCreate  AfterCreateHook[T]
	afterUpdate  AfterUpdateHook[T]
	afterDelete  AfterDeleteHook
}

// Name returns the collection name
func (e *Entity[T]) Name() string { return e.name }

// Schema returns the validation contract
func (e *Entity[T]) Schema() Schema[T] { return e.schema }

// RequiresAuth reports whether operations need a resolved identity
func (e *Entity[T]) RequiresAuth() bool { return e.auth }

// Roles returns the permitted roles; empty means any authenticated caller
func (e *Entity[T]) Roles() []string {
	out := make([]string, 0, len(e.roles))
	for r := range e.roles {
		out = append(out, r)
	}
	return out
}

// HasPublicReads reports whether list and get bypass the authorization gate
func (e *Entity[T]) HasPublicReads() bool { return e.publicReads }

// ParamName returns the route parameter holding the record id
func (e *Entity[T]) ParamName() string { return e.paramName }

// Sort returns the configured list order
func (e *Entity[T]) Sort() []SortField {
	out := make([]SortField, len(e.sort))
	copy(out, e.sort)
	return out
}

// Fields returns the document keys of T in declaration order
func (e *Entity[T]) Fields() []string { return e.fields.names() }

// Hidden reports whether the projection keeps field out of read results.
// Nested paths are judged by their top-level key.
func (e *Entity[T]) Hidden(field string) bool {
	top, _, _ := strings.Cut(field, ".")
	if top == "id" || len(e.projection) == 0 {
		return false
	}
	keep, listed := e.projection[top]
	if listed {
		return !keep
	}
	for _, v := range e.projection {
		if v {
			return true
		}
	}
	return false
}

// EntityBuilder provides a fluent API for entity configuration
type EntityBuilder[T any] struct {
	entity *Entity[T]
}

// NewEntity starts the configuration of a route family over collection name
func NewEntity[T any](name string, schema Schema[T]) *EntityBuilder[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("NewEntity(%q) expects a struct record type", name))
	}
	if name == "" {
		panic("NewEntity expects a collection name")
	}
	if schema == nil {
		panic(fmt.Sprintf("NewEntity(%q) expects a schema", name))
	}
	return &EntityBuilder[T]{
		entity: &Entity[T]{
			name:       name,
			schema:     schema,
			roles:      make(map[string]struct{}),
			projection: make(map[string]bool),
			paramName:  "id",
			fields:     discoverFields(t),
		},
	}
}

// RequireAuth makes every operation require a resolved identity
func (b *EntityBuilder[T]) RequireAuth() *EntityBuilder[T] {
	b.entity.auth = true
	return b
}

// WithRoles restricts operations to callers holding one of the roles
func (b *EntityBuilder[T]) WithRoles(roles ...string) *EntityBuilder[T] {
	for _, r := range roles {
		b.entity.roles[r] = struct{}{}
	}
	return b
}

// PublicReads lets list and get skip the authorization gate
func (b *EntityBuilder[T]) PublicReads() *EntityBuilder[T] {
	b.entity.publicReads = true
	return b
}

// WithProjection sets field inclusion (true) or exclusion (false) flags for read results
func (b *EntityBuilder[T]) WithProjection(flags map[string]bool) *EntityBuilder[T] {
	for k, v := range flags {
		b.entity.projection[k] = v
	}
	return b
}

// Exclude hides fields from read results
func (b *EntityBuilder[T]) Exclude(fields ...string) *EntityBuilder[T] {
	for _, f := range fields {
		b.entity.projection[f] = false
	}
	return b
}

// WithSort appends an ordering key for list results
func (b *EntityBuilder[T]) WithSort(field string, direction SortDirection) *EntityBuilder[T] {
	b.entity.sort = append(b.entity.sort, SortField{Field: field, Direction: direction})
	return b
}

// Searchable sets the fields matched by the q query parameter
func (b *EntityBuilder[T]) Searchable(fields ...string) *EntityBuilder[T] {
	b.entity.searchable = append(b.entity.searchable, fields...)
	return b
}

// WithCustomFilters sets the function contributing an extra list filter
func (b *EntityBuilder[T]) WithCustomFilters(fn FilterFunc) *EntityBuilder[T] {
	b.entity.filters = fn
	return b
}

// WithParamName sets the route parameter holding the record id
func (b *EntityBuilder[T]) WithParamName(name string) *EntityBuilder[T] {
	b.entity.paramName = name
	return b
}

// BeforeCreate sets the hook that may transform or veto a create
func (b *EntityBuilder[T]) BeforeCreate(fn CreateHook[T]) *EntityBuilder[T] {
	b.entity.beforeCreate = fn
	return b
}

// BeforeUpdate sets the hook that may transform or veto an update
func (b *EntityBuilder[T]) BeforeUpdate(fn UpdateHook[T]) *EntityBuilder[T] {
	b.entity.beforeUpdate = fn
	return b
}

// BeforeDelete sets the hook that may veto a delete
func (b *EntityBuilder[T]) BeforeDelete(fn DeleteHook) *EntityBuilder[T] {
	b.entity.beforeDelete = fn
	return b
}

// AfterCreate sets the hook run in the background after a create
func (b *EntityBuilder[T]) AfterCreate(fn AfterCreateHook[T]) *EntityBuilder[T] {
	b.entity.afterCreate = fn
	return b
}

// AfterUpdate sets the hook run in the background after an update
func (b *EntityBuilder[T]) AfterUpdate(fn AfterUpdateHook[T]) *EntityBuilder[T] {
	b.entity.afterUpdate = fn
	return b
}

// AfterDelete sets the hook run in the background after a delete
func (b *EntityBuilder[T]) AfterDelete(fn AfterDeleteHook) *EntityBuilder[T] {
	b.entity.afterDelete = fn
	return b
}

// Build validates the configuration and returns a frozen copy. Later calls
// on the builder do not affect entities already built.
func (b *EntityBuilder[T]) Build() *Entity[T] {
	src := b.entity
	e := *src

	e.roles = make(map[string]struct{}, len(src.roles))
	for r := range src.roles {
		e.roles[r] = struct{}{}
	}
	e.projection = make(map[string]bool, len(src.projection))
	for k, v := range src.projection {
		e.projection[k] = v
	}
	e.sort = append([]SortField(nil), src.sort...)
	e.searchable = append([]string(nil), src.searchable...)

	if e.paramName == "" {
		e.paramName = "id"
	}
	for _, s := range e.sort {
		if !e.fields.has(s.Field) {
			panic(fmt.Sprintf("entity %s: sort field %q is not a field of the record", e.name, s.Field))
		}
		if !s.Direction.IsValid() {
			panic(fmt.Sprintf("entity %s: invalid sort direction %q", e.name, s.Direction))
		}
	}
	for _, f := range e.searchable {
		if info, ok := e.fields.get(f); !ok || info.Kind != KindString {
			panic(fmt.Sprintf("entity %s: searchable field %q must be a string field", e.name, f))
		}
	}
	include, exclude := 0, 0
	for k, v := range e.projection {
		if !e.fields.has(k) {
			panic(fmt.Sprintf("entity %s: projection field %q is not a field of the record", e.name, k))
		}
		if v {
			include++
		} else {
			exclude++
		}
	}
	if include > 0 && exclude > 0 {
		panic(fmt.Sprintf("entity %s: projection cannot mix inclusion and exclusion", e.name))
	}
	for _, f := range e.searchable {
		if e.Hidden(f) {
			panic(fmt.Sprintf("entity %s: searchable field %q is hidden by the projection", e.name, f))
		}
	}
	return &e
}
