package resources

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

// Issue is the canonical projection of an upstream issue node. Field names
// mirror the wire JSON so the struct doubles as the GraphQL decode target.
type Issue struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Priority    int       `json:"priority"`
	State       struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"state"`
	Team struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Project *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"project"`
	Assignee *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"assignee"`
	Labels struct {
		Nodes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	Parent *struct {
		ID         string `json:"id"`
		Identifier string `json:"identifier"`
	} `json:"parent"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// IssueSelection is the fixed selection set for issue queries: canonical
// fields plus the common relations (state, team, project, assignee,
// labels, parent, children, comments).
const IssueSelection = `
	id identifier title description url priority
	state { id name type }
	team { id name }
	project { id name }
	assignee { id name }
	labels { nodes { id name } }
	parent { id identifier }
	children { nodes { id identifier } }
	comments { nodes { id body } }
	createdAt updatedAt completedAt
`

// IssueFieldAliases maps the DSL's public issue field names to the
// upstream's dotted filter paths.
var IssueFieldAliases = FieldAliases{
	"title":       "title",
	"description": "description",
	"identifier":  "identifier",
	"priority":    "priority",
	"state":       "state.name",
	"stateType":   "state.type",
	"team":        "team.id",
	"project":     "project.id",
	"assignee":    "assignee.name",
	"label":       "labels.nodes.name",
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
}

// ToSearchResult projects an Issue into the common SearchResult shape.
func (i Issue) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           i.ID,
		ResourceType: TypeIssue,
		Title:        i.Title,
		URL:          i.URL,
		Description:  i.Description,
		Identifier:   i.Identifier,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
		Team:         i.Team.Name,
		AdditionalData: map[string]any{
			"priority": i.Priority,
			"state":    i.State.Name,
			"stateType": i.State.Type,
		},
	}
}

// IssueClient is the issue resource client plus the identifier-based lookup
// the upstream API doesn't expose directly.
type IssueClient struct {
	*Client[Issue]
}

// NewIssueClient builds the issue resource client.
func NewIssueClient(up *upstream.Client) *IssueClient {
	return &IssueClient{
		Client: NewClient[Issue](up, TypeIssue, "issues", "issue", IssueSelection, IssueFieldAliases),
	}
}

// GetByIdentifier resolves an issue by its human-readable identifier (e.g.
// "ENG-123"): the upstream API only filters by team + numeric sequence, so
// this issues a filtered list call and validates the exact match client-side.
func (c *IssueClient) GetByIdentifier(ctx context.Context, teamID, identifier string) (*Issue, error) {
	filter := map[string]any{
		"team": map[string]any{"id": map[string]any{"eq": teamID}},
	}
	if idx := strings.LastIndex(identifier, "-"); idx >= 0 {
		if n, err := strconv.Atoi(identifier[idx+1:]); err == nil {
			filter["number"] = map[string]any{"eq": n}
		}
	}

	nodes, _, _, err := c.List(ctx, filter, nil, 1, "")
	if err != nil {
		return nil, err
	}
	for _, issue := range nodes {
		if issue.Identifier == identifier {
			return &issue, nil
		}
	}
	return nil, nil
}
