package query

import (
	"strconv"
	"strings"

	"github.com/pmbridge/mediation-server/internal/resources"
	"github.com/pmbridge/mediation-server/pkg/errors"
)

// Parse turns a compact DSL string into a SearchQuery. Recognized tokens
// (type:, limit:, sort:, field:value) may appear in any order; whatever
// remains after extracting them becomes the free-text portion, compiled
// into a CONTAINS condition on title (issues) or name (everything else).
func Parse(raw string) (*SearchQuery, error) {
	// Limit is left at 0 ("unspecified") unless the DSL sets one; the search
	// engine applies its configured default in that case.
	q := &SearchQuery{}
	var freeText []string

	for _, token := range strings.Fields(raw) {
		key, value, hasColon := strings.Cut(token, ":")
		if !hasColon {
			freeText = append(freeText, token)
			continue
		}

		switch strings.ToLower(key) {
		case "type":
			for _, name := range strings.Split(value, ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				t, ok := resources.ParseType(strings.ToLower(name))
				if !ok {
					return nil, errors.New(errors.EValidation, "unknown resource type %q", name)
				}
				q.ResourceTypes = append(q.ResourceTypes, t)
			}
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.New(errors.EValidation, "limit must be an integer, got %q", value)
			}
			if n < 1 || n > MaxLimit {
				return nil, errors.New(errors.EValidation, "limit must be in [1,%d], got %d", MaxLimit, n)
			}
			q.Limit = n
		case "sort":
			field, dir, _ := strings.Cut(value, ":")
			direction := Asc
			if strings.EqualFold(dir, "desc") {
				direction = Desc
			}
			q.Sort = &Sort{Field: field, Direction: direction}
		case "group":
			q.GroupBy = value
		case "archived":
			q.IncludeArchived = strings.EqualFold(value, "true") || value == "1"
		default:
			op, val := splitOperator(value)
			q.Conditions = append(q.Conditions, Condition{Field: key, Operator: op, Value: val})
		}
	}

	if len(q.ResourceTypes) == 0 {
		q.ResourceTypes = resources.AllTypes
	}

	q.Text = strings.Join(freeText, " ")
	if q.Text != "" {
		field := "name"
		for _, t := range q.ResourceTypes {
			if t == resources.TypeIssue {
				field = "title"
				break
			}
		}
		q.Conditions = append(q.Conditions, Condition{Field: field, Operator: OpContains, Value: q.Text})
	}

	return q, nil
}

// splitOperator strips a leading operator prefix (>=, <=, >, <, !) from a
// condition value, defaulting to equality when no prefix matches.
func splitOperator(value string) (Operator, string) {
	switch {
	case strings.HasPrefix(value, ">="):
		return OpGte, value[2:]
	case strings.HasPrefix(value, "<="):
		return OpLte, value[2:]
	case strings.HasPrefix(value, ">"):
		return OpGt, value[1:]
	case strings.HasPrefix(value, "<"):
		return OpLt, value[1:]
	case strings.HasPrefix(value, "!"):
		return OpNeq, value[1:]
	default:
		return OpEq, value
	}
}
