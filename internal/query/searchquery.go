// Package query implements the DSL parser and filter compiler: turning a
// compact textual query into a SearchQuery, and a SearchQuery's conditions
// into resource-type-specific GraphQL filter variables.
package query

import "github.com/pmbridge/mediation-server/internal/resources"

// Operator is one of the filter operators the compiler maps 1:1 onto
// upstream filter keys.
type Operator string

// Supported operators.
const (
	OpEq           Operator = "eq"
	OpNeq          Operator = "neq"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "notContains"
	OpStartsWith   Operator = "startsWith"
	OpEndsWith     Operator = "endsWith"
	OpGt           Operator = "gt"
	OpGte          Operator = "gte"
	OpLt           Operator = "lt"
	OpLte          Operator = "lte"
	OpIn           Operator = "in"
	OpNin          Operator = "nin"
	OpNull         Operator = "null"
)

// Condition is one `(field, operator, value)` triple extracted from the DSL
// or built programmatically (e.g. the search engine's archived exclusion).
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is the query's requested ordering.
type Sort struct {
	Field     string
	Direction Direction
}

// SearchQuery is the parsed, type-checked representation of a client's
// search request, independent of any single resource type's filter shape.
type SearchQuery struct {
	Text            string
	ResourceTypes   []resources.Type
	Conditions      []Condition
	Sort            *Sort
	Limit           int
	Offset          int
	Cursor          string
	IncludeArchived bool

	// GroupBy names a SearchResult field (e.g. "type", "team") the engine
	// should bucket results by in addition to the flat list. Empty means no
	// grouping.
	GroupBy string
}

// DefaultLimit and MaxLimit bound an unqualified or out-of-range limit:
// clamped by the caller (the search engine), not by the parser itself.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)
