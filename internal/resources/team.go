package resources

import (
	"time"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

// Team is the canonical projection of an upstream team node.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TeamSelection is the fixed selection set for team queries.
const TeamSelection = `id name key createdAt updatedAt`

// TeamFieldAliases maps DSL field names to upstream filter paths.
var TeamFieldAliases = FieldAliases{
	"name":      "name",
	"key":       "key",
	"createdAt": "createdAt",
	"updatedAt": "updatedAt",
}

// ToSearchResult projects a Team into the common SearchResult shape.
func (t Team) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           t.ID,
		ResourceType: TypeTeam,
		Title:        t.Name,
		Identifier:   t.Key,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Team:         t.Name,
	}
}

// NewTeamClient builds the team resource client.
func NewTeamClient(up *upstream.Client) *Client[Team] {
	return NewClient[Team](up, TypeTeam, "teams", "team", TeamSelection, TeamFieldAliases)
}
