package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/danceflow/danceflow/middleware/auth"
)

// Reserved list query parameters
const (
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamSearch = "q"

	likeSuffix = "_like"
)

// ListResult is the outcome of a list operation
type ListResult struct {
	Items []Document `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

// Paginated reports whether the result is a single page of a larger set
func (r ListResult) Paginated() bool {
	return r.Limit > 0
}

// UpdateResult acknowledges an update
type UpdateResult struct {
	ID      string   `json:"id"`
	Updated []string `json:"updated"`
}

// DeleteResult acknowledges a delete
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Service implements the five operations of one entity over a Gateway.
// It holds no request state and is safe for concurrent use.
type Service[T any] struct {
	entity  *Entity[T]
	gateway Gateway
	hooks   *HookRunner
}

// NewService binds an entity configuration to a gateway. After-hooks run on
// hooks; a nil runner gets a silent default.
func NewService[T any](entity *Entity[T], gateway Gateway, hooks *HookRunner) *Service[T] {
	if entity == nil || gateway == nil {
		panic("NewService expects an entity and a gateway")
	}
	if hooks == nil {
		hooks = NewHookRunner(nil, 0)
	}
	return &Service[T]{entity: entity, gateway: gateway, hooks: hooks}
}

// Entity returns the configuration the service was built with
func (s *Service[T]) Entity() *Entity[T] {
	return s.entity
}

// Gateway returns the underlying store handle
func (s *Service[T]) Gateway() Gateway {
	return s.gateway
}

// authorize applies the authorization gate shared by all operations
func (s *Service[T]) authorize(who *auth.Identity, read bool) error {
	e := s.entity
	if read && e.publicReads {
		return nil
	}
	if e.auth && who == nil {
		return Unauthorized("")
	}
	if len(e.roles) > 0 {
		if who == nil {
			return Unauthorized("")
		}
		if _, ok := e.roles[who.Role]; !ok {
			return Forbidden(fmt.Sprintf("role %q may not access %s", who.Role, e.name))
		}
	}
	return nil
}

// List returns the records matching the query parameters
func (s *Service[T]) List(ctx context.Context, who *auth.Identity, params url.Values) (ListResult, error) {
	if err := s.authorize(who, true); err != nil {
		return ListResult{}, err
	}

	q, err := s.buildQuery(params)
	if err != nil {
		return ListResult{}, err
	}
	if s.entity.filters != nil {
		extra, err := s.entity.filters(ctx, who, params)
		if err != nil {
			return ListResult{}, hookError(err, KindForbidden)
		}
		q.Where(extra)
	}

	items, total, err := s.gateway.Find(ctx, s.entity.name, q)
	if err != nil {
		return ListResult{}, s.storeError(err, "listing", "")
	}

	result := ListResult{
		Items: Projection(s.entity.projection).ApplyAll(items),
		Total: total,
	}
	if result.Items == nil {
		result.Items = []Document{}
	}
	if q.IsPaginated() {
		result.Page = q.GetCurrentPage()
		result.Limit = q.Pagination.Limit
	}
	return result, nil
}

// buildQuery turns list query parameters into a Query. Unknown keys and
// fields hidden by the projection are ignored.
func (s *Service[T]) buildQuery(params url.Values) (*Query, error) {
	q := NewQuery()
	var issues []FieldIssue

	for key, values := range params {
		if len(values) == 0 || key == ParamPage || key == ParamLimit || key == ParamSearch {
			continue
		}
		if field, ok := strings.CutSuffix(key, likeSuffix); ok && s.entity.fields.has(field) {
			if !s.entity.Hidden(field) {
				q.Where(Contains(field, values[0]))
			}
			continue
		}
		if !s.entity.fields.has(key) || s.entity.Hidden(key) {
			continue
		}
		info, _ := s.entity.fields.get(key)
		coerced := make([]any, len(values))
		for i, v := range values {
			if strings.Contains(key, ".") {
				coerced[i] = v
			} else {
				coerced[i] = info.coerce(v)
			}
		}
		switch {
		case info.Kind == KindArray && !strings.Contains(key, "."):
			for _, v := range values {
				q.Where(Contains(key, v))
			}
		case len(coerced) == 1:
			q.Where(Eq(key, coerced[0]))
		default:
			q.Where(In(key, coerced...))
		}
	}

	if term := strings.TrimSpace(params.Get(ParamSearch)); term != "" && len(s.entity.searchable) > 0 {
		alts := make([]Filter, len(s.entity.searchable))
		for i, f := range s.entity.searchable {
			alts[i] = Contains(f, term)
		}
		q.Where(Or(alts...))
	}

	for _, sf := range s.entity.sort {
		q.WithSort(sf.Field, sf.Direction)
	}

	rawPage, rawLimit := params.Get(ParamPage), params.Get(ParamLimit)
	if rawPage != "" || rawLimit != "" {
		page, limit := 1, 0
		if rawPage != "" {
			n, err := strconv.Atoi(rawPage)
			if err != nil || n < 1 {
				issues = append(issues, FieldIssue{Path: ParamPage, Message: "must be a positive integer"})
			}
			page = n
		}
		if rawLimit != "" {
			n, err := strconv.Atoi(rawLimit)
			if err != nil || n < 1 {
				issues = append(issues, FieldIssue{Path: ParamLimit, Message: "must be a positive integer"})
			}
			limit = n
		}
		q.WithPage(page, limit)
		if l := q.Pagination.Limit; l > 0 && page > math.MaxInt/l {
			issues = append(issues, FieldIssue{Path: ParamPage, Message: fmt.Sprintf("must be at most %d", math.MaxInt/l)})
		}
	}

	if len(issues) > 0 {
		return nil, Validation("invalid query parameters", issues...)
	}
	return q, nil
}

// Get returns a single record
func (s *Service[T]) Get(ctx context.Context, who *auth.Identity, id string) (Document, error) {
	if err := s.authorize(who, true); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, s.notFound(id)
	}
	doc, err := s.gateway.FindOne(ctx, s.entity.name, id)
	if err != nil {
		return nil, s.storeError(err, "loading", id)
	}
	return Projection(s.entity.projection).Apply(doc), nil
}

// Fetch loads a record as T without authorization or projection. Hooks use
// it to inspect the stored state of a record.
func (s *Service[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := s.gateway.FindOne(ctx, s.entity.name, id)
	if err != nil {
		return zero, s.storeError(err, "loading", id)
	}
	v, err := FromDocument[T](doc)
	if err != nil {
		return zero, Internal(err)
	}
	return v, nil
}

// Create validates body, runs the before-hook and inserts the record
func (s *Service[T]) Create(ctx context.Context, who *auth.Identity, body []byte) (Document, error) {
	e := s.entity
	if err := s.authorize(who, false); err != nil {
		return nil, err
	}

	v, err := e.schema.ValidateFull(body)
	if err != nil {
		return nil, err
	}
	if e.beforeCreate != nil {
		if v, err = e.beforeCreate(ctx, v, who); err != nil {
			return nil, hookError(err, KindConflict)
		}
	}

	doc, err := ToDocument(v)
	if err != nil {
		return nil, Internal(err)
	}
	delete(doc, "id")

	stored, err := s.gateway.Insert(ctx, e.name, doc)
	if err != nil {
		return nil, s.storeError(err, "inserting", "")
	}

	if e.afterCreate != nil {
		record, err := FromDocument[T](stored)
		if err != nil {
			record = v
		}
		s.hooks.Go(ctx, e.name, "afterCreate", stored.ID(), func(ctx context.Context) error {
			return e.afterCreate(ctx, record, who)
		})
	}
	return Projection(e.projection).Apply(stored), nil
}

// Update validates the supplied fields, runs the before-hook and merges them
// into the stored record
func (s *Service[T]) Update(ctx context.Context, who *auth.Identity, id string, body []byte) (UpdateResult, error) {
	e := s.entity
	if err := s.authorize(who, false); err != nil {
		return UpdateResult{}, err
	}

	p, err := e.schema.ValidatePartial(body)
	if err != nil {
		return UpdateResult{}, err
	}
	if e.beforeUpdate != nil {
		if p, err = e.beforeUpdate(ctx, p, who, id); err != nil {
			return UpdateResult{}, hookError(err, KindConflict)
		}
	}
	p.Unset("id")

	patch, err := p.Document()
	if err != nil {
		return UpdateResult{}, Internal(err)
	}
	if id == "" {
		return UpdateResult{}, s.notFound(id)
	}
	if len(patch) == 0 {
		// nothing to write, but the record must still exist
		if _, err := s.gateway.FindOne(ctx, e.name, id); err != nil {
			return UpdateResult{}, s.storeError(err, "loading", id)
		}
	} else if err := s.gateway.UpdateOne(ctx, e.name, id, patch); err != nil {
		return UpdateResult{}, s.storeError(err, "updating", id)
	}

	if e.afterUpdate != nil {
		s.hooks.Go(ctx, e.name, "afterUpdate", id, func(ctx context.Context) error {
			return e.afterUpdate(ctx, p, who, id)
		})
	}
	return UpdateResult{ID: id, Updated: p.Fields()}, nil
}

// Delete runs the before-hook and removes the record
func (s *Service[T]) Delete(ctx context.Context, who *auth.Identity, id string) (DeleteResult, error) {
	e := s.entity
	if err := s.authorize(who, false); err != nil {
		return DeleteResult{}, err
	}
	if e.beforeDelete != nil {
		if err := e.beforeDelete(ctx, who, id); err != nil {
			return DeleteResult{}, hookError(err, KindForbidden)
		}
	}
	if id == "" {
		return DeleteResult{}, s.notFound(id)
	}
	if err := s.gateway.DeleteOne(ctx, e.name, id); err != nil {
		return DeleteResult{}, s.storeError(err, "deleting", id)
	}

	if e.afterDelete != nil {
		s.hooks.Go(ctx, e.name, "afterDelete", id, func(ctx context.Context) error {
			return e.afterDelete(ctx, id, who)
		})
	}
	return DeleteResult{ID: id, Deleted: true}, nil
}

func (s *Service[T]) notFound(id string) *Error {
	if id == "" {
		return NotFound(fmt.Sprintf("%s not found", s.entity.name))
	}
	return NotFound(fmt.Sprintf("%s %s not found", s.entity.name, id))
}

// storeError maps a gateway failure to an operation error
func (s *Service[T]) storeError(err error, action, id string) *Error {
	if errors.Is(err, ErrNotFound) {
		nf := s.notFound(id)
		nf.Err = err
		return nf
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if id != "" {
		return Internal(fmt.Errorf("%s %s %s: %w", action, s.entity.name, id, err))
	}
	return Internal(fmt.Errorf("%s %s: %w", action, s.entity.name, err))
}
