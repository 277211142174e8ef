package search

import (
	"context"

	"github.com/pmbridge/mediation-server/internal/resources"
	"github.com/pmbridge/mediation-server/internal/upstream"
)

// projectable is any resource-client node type with a SearchResult
// projection; the constraint every resourceLister's backing Client[T] must
// satisfy.
type projectable interface {
	ToSearchResult() resources.SearchResult
}

// resourceLister is the type-erased face the engine fans out over: one per
// resource type, hiding the generic Client[T] behind a uniform signature.
type resourceLister interface {
	FieldAliases() resources.FieldAliases
	Search(ctx context.Context, filter map[string]any, sortField string, ascending bool, limit int) (results []resources.SearchResult, total int, hasMore bool, err error)
}

type clientLister[T projectable] struct {
	client  *resources.Client[T]
	aliases resources.FieldAliases
}

func (l *clientLister[T]) FieldAliases() resources.FieldAliases {
	return l.aliases
}

func (l *clientLister[T]) Search(ctx context.Context, filter map[string]any, sortField string, ascending bool, limit int) ([]resources.SearchResult, int, bool, error) {
	var sortSpec *resources.SortSpec
	if sortField != "" {
		sortSpec = &resources.SortSpec{Field: sortField, Ascending: ascending}
	}

	nodes, page, total, err := l.client.List(ctx, filter, sortSpec, limit, "")
	if err != nil {
		return nil, 0, false, err
	}

	results := make([]resources.SearchResult, len(nodes))
	for i, n := range nodes {
		results[i] = n.ToSearchResult()
	}
	return results, total, page.HasNextPage, nil
}

// newLister adapts a generic resource client into the engine's type-erased
// provider interface.
func newLister[T projectable](client *resources.Client[T], aliases resources.FieldAliases) resourceLister {
	return &clientLister[T]{client: client, aliases: aliases}
}

// defaultProviders builds the standard provider set: one lister per
// resource type the server mediates, all sharing the same upstream
// executor.
func defaultProviders(up *upstream.Client) map[resources.Type]resourceLister {
	issueClient := resources.NewIssueClient(up)
	return map[resources.Type]resourceLister{
		resources.TypeIssue:         newLister[resources.Issue](issueClient.Client, resources.IssueFieldAliases),
		resources.TypeProject:       newLister(resources.NewProjectClient(up), resources.ProjectFieldAliases),
		resources.TypeTeam:          newLister(resources.NewTeamClient(up), resources.TeamFieldAliases),
		resources.TypeUser:          newLister(resources.NewUserClient(up), resources.UserFieldAliases),
		resources.TypeComment:       newLister(resources.NewCommentClient(up), resources.CommentFieldAliases),
		resources.TypeLabel:         newLister(resources.NewLabelClient(up), resources.LabelFieldAliases),
		resources.TypeCustomField:   newLister(resources.NewCustomFieldClient(up), resources.CustomFieldFieldAliases),
		resources.TypeWorkflowState: newLister(resources.NewWorkflowStateClient(up), resources.WorkflowStateFieldAliases),
		resources.TypeCycle:         newLister(resources.NewCycleClient(up), resources.CycleFieldAliases),
	}
}

// archivedExclusions maps a resource type to the condition appended to its
// filter unless a query opts into includeArchived. Only types with a
// workflow-state-like lifecycle need one.
var archivedExclusions = map[resources.Type]struct {
	field string
	value string
}{
	resources.TypeIssue: {field: "stateType", value: resources.ArchivedExclusionType},
}
