package resources

import (
	"time"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

// Cycle is the canonical projection of an upstream cycle (sprint) node.
type Cycle struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Team     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CycleSelection is the fixed selection set for cycle queries.
const CycleSelection = `
	id name number
	team { id name }
	startsAt endsAt createdAt updatedAt
`

// CycleFieldAliases maps DSL field names to upstream filter paths.
var CycleFieldAliases = FieldAliases{
	"name":      "name",
	"number":    "number",
	"team":      "team.id",
	"startsAt":  "startsAt",
	"endsAt":    "endsAt",
	"createdAt": "createdAt",
	"updatedAt": "updatedAt",
}

// ToSearchResult projects a Cycle into the common SearchResult shape.
func (c Cycle) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           c.ID,
		ResourceType: TypeCycle,
		Title:        c.Name,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Team:         c.Team.Name,
		AdditionalData: map[string]any{
			"number":   c.Number,
			"startsAt": c.StartsAt,
			"endsAt":   c.EndsAt,
		},
	}
}

// NewCycleClient builds the cycle resource client.
func NewCycleClient(up *upstream.Client) *Client[Cycle] {
	return NewClient[Cycle](up, TypeCycle, "cycles", "cycle", CycleSelection, CycleFieldAliases)
}
