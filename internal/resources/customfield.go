package resources

import (
	"github.com/pmbridge/mediation-server/internal/upstream"
)

// CustomField is the canonical projection of an upstream custom-field
// definition node.
type CustomField struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Team     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
}

// CustomFieldSelection is the fixed selection set for custom-field queries.
const CustomFieldSelection = `
	id name dataType
	team { id name }
`

// CustomFieldFieldAliases maps DSL field names to upstream filter paths.
var CustomFieldFieldAliases = FieldAliases{
	"name":     "name",
	"dataType": "dataType",
	"team":     "team.id",
}

// ToSearchResult projects a CustomField into the common SearchResult shape.
func (f CustomField) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           f.ID,
		ResourceType: TypeCustomField,
		Title:        f.Name,
		Team:         f.Team.Name,
		AdditionalData: map[string]any{
			"dataType": f.DataType,
		},
	}
}

// NewCustomFieldClient builds the custom-field resource client.
func NewCustomFieldClient(up *upstream.Client) *Client[CustomField] {
	return NewClient[CustomField](up, TypeCustomField, "customFields", "customField", CustomFieldSelection, CustomFieldFieldAliases)
}
