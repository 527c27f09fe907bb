package core

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FieldKind is the coarse type of a record field, used to coerce query parameters
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindTime   FieldKind = "time"
	KindArray  FieldKind = "array"
	KindObject FieldKind = "object"
)

// FieldInfo represents metadata about a record struct field
type FieldInfo struct {
	Name     string    `json:"name"`      // Go field name
	JSONName string    `json:"json_name"` // document key
	Kind     FieldKind `json:"kind"`
	Index    []int     `json:"-"`
}

// fieldSet indexes the fields of a record type by document key
type fieldSet struct {
	byJSON map[string]FieldInfo
	order  []string
}

var timeType = reflect.TypeOf(time.Time{})

// discoverFields extracts field information from the struct using reflection
func discoverFields(t reflect.Type) fieldSet {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	fs := fieldSet{byJSON: make(map[string]FieldInfo)}
	if t.Kind() != reflect.Struct {
		return fs
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}
		name := getJSONTag(field)
		if name == "" {
			continue
		}
		info := FieldInfo{
			Name:     field.Name,
			JSONName: name,
			Kind:     kindOf(field.Type),
			Index:    field.Index,
		}
		fs.byJSON[name] = info
		fs.order = append(fs.order, name)
	}
	return fs
}

func (fs fieldSet) get(jsonName string) (FieldInfo, bool) {
	f, ok := fs.byJSON[jsonName]
	return f, ok
}

// has reports whether the top-level segment of a dotted path is a known field
func (fs fieldSet) has(path string) bool {
	top, _, _ := strings.Cut(path, ".")
	_, ok := fs.byJSON[top]
	return ok
}

func (fs fieldSet) names() []string {
	out := make([]string, len(fs.order))
	copy(out, fs.order)
	return out
}

// getJSONTag returns the document key for a struct field, or "" when the
// field is excluded from JSON
func getJSONTag(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func kindOf(t reflect.Type) FieldKind {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return KindTime
	}
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Struct, reflect.Map:
		return KindObject
	}
	return KindString
}

// coerce converts a raw query parameter into the value type stored for the field.
// Values that do not parse are compared as strings.
func (f FieldInfo) coerce(raw string) any {
	switch f.Kind {
	case KindBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case KindNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	case KindTime:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return Normalize(t)
		}
	}
	return raw
}

// goNames maps document keys to Go field names, skipping unknown keys
func (fs fieldSet) goNames(jsonNames []string) []string {
	out := make([]string, 0, len(jsonNames))
	for _, n := range jsonNames {
		if f, ok := fs.byJSON[n]; ok {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}
