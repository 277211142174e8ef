// Package resources implements the per-resource-type GraphQL clients: fixed
// canonical selection sets, field-alias tables consulted by the query
// builder, and the projection of upstream nodes into SearchResult values
// consumed by the search engine.
package resources

import "time"

// Type identifies one of the domain resource types the server mediates.
type Type string

// Supported resource types.
const (
	TypeIssue         Type = "issue"
	TypeProject       Type = "project"
	TypeTeam          Type = "team"
	TypeUser          Type = "user"
	TypeComment       Type = "comment"
	TypeLabel         Type = "label"
	TypeCustomField   Type = "customField"
	TypeWorkflowState Type = "workflowState"
	TypeCycle         Type = "cycle"
)

// AllTypes is the default resource-type set a query searches when it omits
// a type: clause.
var AllTypes = []Type{
	TypeIssue, TypeProject, TypeTeam, TypeUser,
	TypeComment, TypeLabel, TypeCustomField, TypeWorkflowState, TypeCycle,
}

// ParseType case-insensitively resolves a DSL type name to a Type.
func ParseType(s string) (Type, bool) {
	for _, t := range AllTypes {
		if lower(string(t)) == lower(s) {
			return t, true
		}
	}
	return "", false
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// FieldAliases maps a resource type's public field names to dotted upstream
// paths. Absent entries fail filter/sort compilation.
type FieldAliases map[string]string

// PageInfo mirrors the GraphQL Relay-style page cursor block.
type PageInfo struct {
	HasNextPage bool
	EndCursor   string
}

// SearchResult is the shape every resource-type projection produces, the
// common currency the search engine merges, scores, and formats.
type SearchResult struct {
	ID             string
	ResourceType   Type
	Title          string
	URL            string
	Description    string
	Identifier     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Team           string
	AdditionalData map[string]any

	// Score is attached by the search optimizer; zero until then.
	Score float64
}
