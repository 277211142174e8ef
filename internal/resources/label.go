package resources

import (
	"time"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

// Label is the canonical projection of an upstream label node.
type Label struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LabelSelection is the fixed selection set for label queries.
const LabelSelection = `id name color createdAt updatedAt`

// LabelFieldAliases maps DSL field names to upstream filter paths.
var LabelFieldAliases = FieldAliases{
	"name":      "name",
	"color":     "color",
	"createdAt": "createdAt",
	"updatedAt": "updatedAt",
}

// ToSearchResult projects a Label into the common SearchResult shape.
func (l Label) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           l.ID,
		ResourceType: TypeLabel,
		Title:        l.Name,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
		AdditionalData: map[string]any{
			"color": l.Color,
		},
	}
}

// NewLabelClient builds the label resource client.
func NewLabelClient(up *upstream.Client) *Client[Label] {
	return NewClient[Label](up, TypeLabel, "labels", "label", LabelSelection, LabelFieldAliases)
}
