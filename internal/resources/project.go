package resources

import (
	"time"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

// Project is the canonical projection of an upstream project node.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	State       string    `json:"state"`
	Team        struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Lead *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"lead"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectSelection is the fixed selection set for project queries.
const ProjectSelection = `
	id name description url state
	team { id name }
	lead { id name }
	createdAt updatedAt
`

// ProjectFieldAliases maps DSL field names to upstream filter paths.
var ProjectFieldAliases = FieldAliases{
	"name":        "name",
	"description": "description",
	"state":       "state",
	"team":        "team.id",
	"lead":        "lead.name",
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
}

// ToSearchResult projects a Project into the common SearchResult shape.
func (p Project) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           p.ID,
		ResourceType: TypeProject,
		Title:        p.Name,
		URL:          p.URL,
		Description:  p.Description,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Team:         p.Team.Name,
		AdditionalData: map[string]any{
			"state": p.State,
		},
	}
}

// NewProjectClient builds the project resource client.
func NewProjectClient(up *upstream.Client) *Client[Project] {
	return NewClient[Project](up, TypeProject, "projects", "project", ProjectSelection, ProjectFieldAliases)
}
