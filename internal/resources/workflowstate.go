package resources

import (
	"github.com/pmbridge/mediation-server/internal/upstream"
)

// WorkflowState is the canonical projection of an upstream workflow-state
// (issue status) node.
type WorkflowState struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Position float64 `json:"position"`
	Team     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
}

// WorkflowStateSelection is the fixed selection set for workflow-state
// queries.
const WorkflowStateSelection = `
	id name type position
	team { id name }
`

// WorkflowStateFieldAliases maps DSL field names to upstream filter paths.
var WorkflowStateFieldAliases = FieldAliases{
	"name": "name",
	"type": "type",
	"team": "team.id",
}

// ArchivedExclusionType is the workflow-state type value the search engine
// excludes by default unless includeArchived is set.
const ArchivedExclusionType = "canceled"

// ToSearchResult projects a WorkflowState into the common SearchResult
// shape.
func (w WorkflowState) ToSearchResult() SearchResult {
	return SearchResult{
		ID:           w.ID,
		ResourceType: TypeWorkflowState,
		Title:        w.Name,
		Team:         w.Team.Name,
		AdditionalData: map[string]any{
			"type":     w.Type,
			"position": w.Position,
		},
	}
}

// NewWorkflowStateClient builds the workflow-state resource client.
func NewWorkflowStateClient(up *upstream.Client) *Client[WorkflowState] {
	return NewClient[WorkflowState](up, TypeWorkflowState, "workflowStates", "workflowState", WorkflowStateSelection, WorkflowStateFieldAliases)
}
