package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Schema is the validation contract of an entity
type Schema[T any] interface {
	// ValidateFull parses and validates a complete record (create)
	ValidateFull(body []byte) (T, error)

	// ValidatePartial parses a partial record and validates only the fields
	// present in the body (update)
	ValidatePartial(body []byte) (Patch[T], error)
}

// Refinement is a cross-field rule applied to complete records
type Refinement[T any] func(T) []FieldIssue

// StructSchema validates records using `validate` struct tags
type StructSchema[T any] struct {
	validate    *validator.Validate
	fields      fieldSet
	refinements []Refinement[T]
	readOnly    map[string]struct{}
}

// NewSchema creates a struct-tag schema for T. Field paths in issues use json names.
func NewSchema[T any]() *StructSchema[T] {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return getJSONTag(field)
	})

	var zero T
	return &StructSchema[T]{
		validate: v,
		fields:   discoverFields(reflect.TypeOf(zero)),
		readOnly: map[string]struct{}{"id": {}},
	}
}

// Refine adds a cross-field rule checked by ValidateFull
func (s *StructSchema[T]) Refine(fn Refinement[T]) *StructSchema[T] {
	s.refinements = append(s.refinements, fn)
	return s
}

// ReadOnly marks document keys that callers may never supply in a partial update
func (s *StructSchema[T]) ReadOnly(fields ...string) *StructSchema[T] {
	for _, f := range fields {
		s.readOnly[f] = struct{}{}
	}
	return s
}

// RegisterValidation exposes custom validator tags
func (s *StructSchema[T]) RegisterValidation(tag string, fn validator.Func) *StructSchema[T] {
	if err := s.validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering validation %q: %v", tag, err))
	}
	return s
}

func (s *StructSchema[T]) ValidateFull(body []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, decodeError(err)
	}

	var issues []FieldIssue
	if err := s.validate.Struct(v); err != nil {
		issues = append(issues, validatorIssues(err)...)
	}
	for _, refine := range s.refinements {
		issues = append(issues, refine(v)...)
	}
	if len(issues) > 0 {
		return v, Validation("", issues...)
	}
	return v, nil
}

func (s *StructSchema[T]) ValidatePartial(body []byte) (Patch[T], error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Patch[T]{}, decodeError(err)
	}
	if raw == nil {
		return Patch[T]{}, Validation("request body must be a JSON object", FieldIssue{Path: "", Message: "expected an object"})
	}

	var issues []FieldIssue
	present := make([]string, 0, len(raw))
	for key := range raw {
		if _, ok := s.fields.get(key); !ok {
			issues = append(issues, FieldIssue{Path: key, Message: "unknown field"})
			continue
		}
		if _, ok := s.readOnly[key]; ok {
			issues = append(issues, FieldIssue{Path: key, Message: "is read-only"})
			continue
		}
		present = append(present, key)
	}
	if len(issues) > 0 {
		return Patch[T]{}, Validation("", issues...)
	}

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return Patch[T]{}, decodeError(err)
	}

	included := make(map[string]struct{}, len(present))
	for _, name := range s.fields.goNames(present) {
		included[name] = struct{}{}
	}
	err := s.validate.StructFiltered(v, func(ns []byte) bool {
		// ns looks like "Event.Location.Name"; keep fields whose top-level
		// segment was supplied by the caller
		_, rest, _ := strings.Cut(string(ns), ".")
		top := rest
		if i := strings.IndexAny(rest, ".["); i >= 0 {
			top = rest[:i]
		}
		_, ok := included[top]
		return !ok
	})
	if err != nil {
		return Patch[T]{}, Validation("", validatorIssues(err)...)
	}
	return NewPatch(v, present...), nil
}

// decodeError turns a JSON decoding failure into a validation error
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Validation("", FieldIssue{
			Path:    typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", jsonTypeName(typeErr.Type)),
		})
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return Validation("", FieldIssue{Path: field, Message: "unknown field"})
	}
	return Validation("request body is not valid JSON", FieldIssue{Path: "", Message: msg})
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "unknown"
	}
	switch kindOf(t) {
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "string"
}

func validatorIssues(err error) []FieldIssue {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldIssue{{Path: "", Message: err.Error()}}
	}
	issues := make([]FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Type.field.sub"; drop the type name
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		issues = append(issues, FieldIssue{Path: path, Message: issueMessage(fe)})
	}
	return issues
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "hexcolor":
		return "must be a hex color"
	case "latitude":
		return "must be a valid latitude"
	case "longitude":
		return "must be a valid longitude"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
