package methods

import (
	"context"
	"encoding/json"

	"github.com/pmbridge/mediation-server/internal/capability"
	"github.com/pmbridge/mediation-server/internal/jsonrpc"
	"github.com/pmbridge/mediation-server/internal/query"
	"github.com/pmbridge/mediation-server/internal/resources"
	"github.com/pmbridge/mediation-server/internal/search"
	"github.com/pmbridge/mediation-server/internal/upstream"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

// searchParams is the params shape for the "search" tool.
type searchParams struct {
	Query  string `json:"query"`
	Format string `json:"format"` // "page" (default), "batch", or "stream"
}

// searchToolInputSchema and searchToolOutputSchema are the JSON-schema
// documents advertised for the "search" tool capability.
var searchToolInputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query":  map[string]any{"type": "string"},
		"format": map[string]any{"type": "string", "enum": []string{"page", "batch", "stream"}},
	},
	"required": []string{"query"},
}

var searchToolOutputSchema = map[string]any{
	"type": "object",
}

// Wire registers every resource operation and the search tool into reg and
// caps. It's the single place startup code calls once the upstream client,
// cache, and search engine exist.
func Wire(reg *jsonrpc.MethodRegistry, caps *capability.Registry, up *upstream.Client, engine *search.Engine, formatter *search.Formatter, log logger.Logger) {
	issueClient := resources.NewIssueClient(up)
	registerResourceMethods(reg, caps, resources.TypeIssue, issueClient.Client, resources.IssueFieldAliases, log)
	registerStateNameResolution(reg, issueClient, resources.NewStateResolver(up))
	registerResourceMethods(reg, caps, resources.TypeProject, resources.NewProjectClient(up), resources.ProjectFieldAliases, log)
	registerResourceMethods(reg, caps, resources.TypeTeam, resources.NewTeamClient(up), resources.TeamFieldAliases, log)
	registerResourceMethods(reg, caps, resources.TypeUser, resources.NewUserClient(up), resources.UserFieldAliases, log)
	registerResourceMethods(reg, caps, resources.TypeComment, resources.NewCommentClient(up), resources.CommentFieldAliases, log)
	registerResourceMethods(reg, caps, resources.TypeLabel, resources.NewLabelClient(up), resources.LabelFieldAliases, log)
	registerResourceMethods(reg, caps, resources.TypeCustomField, resources.NewCustomFieldClient(up), resources.CustomFieldFieldAliases, log)
	registerResourceMethods(reg, caps, resources.TypeWorkflowState, resources.NewWorkflowStateClient(up), resources.WorkflowStateFieldAliases, log)
	registerResourceMethods(reg, caps, resources.TypeCycle, resources.NewCycleClient(up), resources.CycleFieldAliases, log)

	reg.Register("search", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p searchParams
		if err := json.Unmarshal(raw, &p); err != nil || p.Query == "" {
			return nil, errors.New(errors.EValidation, "query is required")
		}

		q, err := query.Parse(p.Query)
		if err != nil {
			return nil, err
		}

		resp, err := engine.Search(ctx, q)
		if err != nil {
			return nil, err
		}

		anyResults := make([]any, len(resp.Results))
		for i, r := range resp.Results {
			anyResults[i] = r
		}

		switch p.Format {
		case "batch":
			return struct {
				Batches []search.Batch `json:"batches"`
			}{formatter.Batches(anyResults)}, nil
		case "stream":
			return struct {
				Chunks []search.Chunk `json:"chunks"`
			}{formatter.Chunks(anyResults)}, nil
		default:
			return formatter.Paginate(anyResults, cacheHashFor(q)), nil
		}
	})

	caps.Register(capability.Capability{
		Name:         "search",
		Kind:         capability.KindTool,
		InputSchema:  searchToolInputSchema,
		OutputSchema: searchToolOutputSchema,
	})
}

func cacheHashFor(q *query.SearchQuery) string {
	raw, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	return string(raw)
}
