package query

import (
	"strings"

	"github.com/pmbridge/mediation-server/internal/resources"
	"github.com/pmbridge/mediation-server/pkg/errors"
)

// Compile maps a SearchQuery's conditions into a single upstream filter
// variable for one resource type, consulting that type's field-alias
// table. An unknown field fails validation.
func Compile(conditions []Condition, aliases resources.FieldAliases) (map[string]any, error) {
	if len(conditions) == 0 {
		return map[string]any{}, nil
	}

	clauses := make([]map[string]any, 0, len(conditions))
	for _, cond := range conditions {
		alias, ok := aliases[cond.Field]
		if !ok {
			return nil, errors.New(errors.EValidation, "unknown filter field %q", cond.Field)
		}
		clauses = append(clauses, compileClause(alias, cond.Operator, cond.Value))
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return map[string]any{"and": clauses}, nil
}

// compileClause builds the nested filter object for one dotted alias path.
// A "nodes" segment (a to-many relation's list wrapper) becomes "some",
// giving collection-any semantics: `labels.nodes.name` -> `{labels: {some:
// {name: {eq: ...}}}}`.
func compileClause(alias string, op Operator, value any) map[string]any {
	segments := strings.Split(alias, ".")
	for i, seg := range segments {
		if seg == "nodes" {
			segments[i] = "some"
		}
	}

	leaf := leafOperand(op, value)
	result := leaf
	for i := len(segments) - 1; i >= 0; i-- {
		result = map[string]any{segments[i]: result}
	}
	return result
}

func leafOperand(op Operator, value any) map[string]any {
	if op == OpNull {
		return map[string]any{"null": isTruthy(value)}
	}
	return map[string]any{string(op): value}
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case string:
		return t != "" && t != "0" && !strings.EqualFold(t, "false")
	case bool:
		return t
	default:
		return v != nil
	}
}

// CompileSort validates a requested sort field against the resource type's
// field-alias table; unsupported fields are dropped (not a hard error), per
// the query assembly rule that a bad sort field only emits a warning.
func CompileSort(sort *Sort, aliases resources.FieldAliases) (field string, ok bool) {
	if sort == nil {
		return "", false
	}
	alias, known := aliases[sort.Field]
	if !known {
		return "", false
	}
	return alias, true
}
