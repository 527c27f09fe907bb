package sqlite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danceflow/danceflow/core"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// jsonPath converts a dotted document path into a JSON path argument
func jsonPath(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field path %q", field)
	}
	return "$." + field, nil
}

// bindValue converts a normalized filter value into a SQL argument matching
// what json_extract returns for it
func bindValue(v any) any {
	switch b := v.(type) {
	case bool:
		if b {
			return 1
		}
		return 0
	}
	return v
}

// compileFilter translates a filter tree into a WHERE clause over the body column
func compileFilter(f core.Filter) (string, []any, error) {
	switch f.Op {
	case "":
		return "1", nil, nil
	case core.OpAnd, core.OpOr:
		parts := make([]string, 0, len(f.Children))
		var args []any
		for _, c := range f.Children {
			sql, a, err := compileFilter(c)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			args = append(args, a...)
		}
		if len(parts) == 0 {
			return "1", nil, nil
		}
		sep := " AND "
		if f.Op == core.OpOr {
			sep = " OR "
		}
		return strings.Join(parts, sep), args, nil
	}

	path, err := jsonPath(f.Field)
	if err != nil {
		return "", nil, err
	}
	value := core.Normalize(f.Value)

	switch f.Op {
	case core.OpEq:
		if value == nil {
			return "json_extract(body, ?) IS NULL", []any{path}, nil
		}
		return "json_extract(body, ?) = ?", []any{path, bindValue(value)}, nil
	case core.OpNe:
		if value == nil {
			return "json_extract(body, ?) IS NOT NULL", []any{path}, nil
		}
		return "(json_extract(body, ?) IS NULL OR json_extract(body, ?) != ?)", []any{path, path, bindValue(value)}, nil
	case core.OpContains:
		return `CASE json_type(body, ?)
			WHEN 'array' THEN EXISTS (SELECT 1 FROM json_each(body, ?) WHERE json_each.value = ?)
			WHEN 'text' THEN instr(lower(json_extract(body, ?)), lower(?)) > 0
			ELSE 0 END`, []any{path, path, bindValue(value), path, fmt.Sprint(value)}, nil
	case core.OpIn:
		values, _ := value.([]any)
		if len(values) == 0 {
			return "0", nil, nil
		}
		marks := make([]string, len(values))
		args := []any{path}
		for i, v := range values {
			marks[i] = "?"
			args = append(args, bindValue(core.Normalize(v)))
		}
		return "json_extract(body, ?) IN (" + strings.Join(marks, ", ") + ")", args, nil
	case core.OpGte:
		return "json_extract(body, ?) >= ?", []any{path, bindValue(value)}, nil
	case core.OpLte:
		return "json_extract(body, ?) <= ?", []any{path, bindValue(value)}, nil
	}
	return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
}

// compileSort builds an ORDER BY clause; insertion order breaks ties
func compileSort(fields []core.SortField) (string, []any, error) {
	parts := make([]string, 0, len(fields)+1)
	var args []any
	for _, s := range fields {
		path, err := jsonPath(s.Field)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if s.Direction == core.SortDesc {
			dir = "DESC"
		}
		parts = append(parts, "json_extract(body, ?) "+dir)
		args = append(args, path)
	}
	parts = append(parts, "seq ASC")
	return " ORDER BY " + strings.Join(parts, ", "), args, nil
}
