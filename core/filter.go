package core

import (
	"fmt"
	"strings"
	"time"
)

// Op is a filter operator understood by every Gateway
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpContains Op = "contains" // substring for strings, membership for arrays
	OpIn       Op = "in"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpAnd      Op = "and"
	OpOr       Op = "or"
)

// Filter is a predicate tree over document fields. Nested fields are
// addressed with dots, e.g. "location.id". The zero Filter matches everything.
type Filter struct {
	Op       Op       `json:"op,omitempty"`
	Field    string   `json:"field,omitempty"`
	Value    any      `json:"value,omitempty"`
	Children []Filter `json:"children,omitempty"`
}

func Eq(field string, value any) Filter {
	return Filter{Op: OpEq, Field: field, Value: Normalize(value)}
}

func Ne(field string, value any) Filter {
	return Filter{Op: OpNe, Field: field, Value: Normalize(value)}
}

func Contains(field string, value any) Filter {
	return Filter{Op: OpContains, Field: field, Value: Normalize(value)}
}

func Gte(field string, value any) Filter {
	return Filter{Op: OpGte, Field: field, Value: Normalize(value)}
}

func Lte(field string, value any) Filter {
	return Filter{Op: OpLte, Field: field, Value: Normalize(value)}
}

func In(field string, values ...any) Filter {
	norm := make([]any, len(values))
	for i, v := range values {
		norm[i] = Normalize(v)
	}
	return Filter{Op: OpIn, Field: field, Value: norm}
}

// And combines filters, dropping empty ones
func And(filters ...Filter) Filter {
	return combine(OpAnd, filters)
}

// Or combines filters, dropping empty ones
func Or(filters ...Filter) Filter {
	return combine(OpOr, filters)
}

func combine(op Op, filters []Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if !f.IsEmpty() {
			kept = append(kept, f)
		}
	}
	switch len(kept) {
	case 0:
		return Filter{}
	case 1:
		return kept[0]
	}
	return Filter{Op: op, Children: kept}
}

// IsEmpty reports whether the filter matches everything
func (f Filter) IsEmpty() bool {
	return f.Op == ""
}

// String renders the filter for logs
func (f Filter) String() string {
	switch f.Op {
	case "":
		return "true"
	case OpAnd, OpOr:
		parts := make([]string, len(f.Children))
		for i, c := range f.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " "+string(f.Op)+" ") + ")"
	}
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
}

// Normalize converts a Go value to the representation documents use after a
// JSON round trip: numbers become float64 and times become RFC 3339 UTC strings.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case time.Time:
		return n.UTC().Format(time.RFC3339)
	case *time.Time:
		if n == nil {
			return nil
		}
		return n.UTC().Format(time.RFC3339)
	}
	return v
}

// Lookup resolves a dotted field path inside a document
func Lookup(doc Document, path string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Match evaluates the filter against a document in memory
func Match(doc Document, f Filter) bool {
	switch f.Op {
	case "":
		return true
	case OpAnd:
		for _, c := range f.Children {
			if !Match(doc, c) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range f.Children {
			if Match(doc, c) {
				return true
			}
		}
		return false
	}

	got, present := Lookup(doc, f.Field)
	switch f.Op {
	case OpEq:
		if !present {
			return f.Value == nil
		}
		return equalValues(got, f.Value)
	case OpNe:
		if !present {
			return f.Value != nil
		}
		return !equalValues(got, f.Value)
	case OpContains:
		if !present {
			return false
		}
		if items, ok := got.([]any); ok {
			for _, item := range items {
				if equalValues(item, f.Value) {
					return true
				}
			}
			return false
		}
		s, ok := got.(string)
		needle, ok2 := f.Value.(string)
		if !ok || !ok2 {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	case OpIn:
		values, _ := f.Value.([]any)
		for _, v := range values {
			if present && equalValues(got, v) {
				return true
			}
		}
		return false
	case OpGte, OpLte:
		if !present {
			return false
		}
		cmp, ok := compareValues(got, f.Value)
		if !ok {
			return false
		}
		if f.Op == OpGte {
			return cmp >= 0
		}
		return cmp <= 0
	}
	return false
}

func equalValues(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return a == nil && b == nil
}

func compareValues(a, b any) (int, bool) {
	a, b = Normalize(a), Normalize(b)
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	}
	return 0, false
}
