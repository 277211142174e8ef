package methods

import (
	"context"
	"encoding/json"

	"github.com/pmbridge/mediation-server/internal/jsonrpc"
	"github.com/pmbridge/mediation-server/internal/resources"
	"github.com/pmbridge/mediation-server/pkg/errors"
)

// registerStateNameResolution re-registers "issue.create" and "issue.update"
// so an input carrying a human-readable "stateName" resolves to the
// matching workflow state id before the mutation reaches upstream. The
// generic handlers registerResourceMethods already bound for TypeIssue are
// replaced, since MethodRegistry.Register overwrites on duplicate name.
func registerStateNameResolution(reg *jsonrpc.MethodRegistry, issueClient *resources.IssueClient, resolver *resources.StateResolver) {
	resolveInput := func(ctx context.Context, input map[string]any) error {
		name, ok := input["stateName"]
		if !ok {
			return nil
		}
		stateName, ok := name.(string)
		if !ok || stateName == "" {
			return nil
		}

		teamID, _ := input["teamId"].(string)
		if teamID == "" {
			return errors.New(errors.EValidation, "teamId is required to resolve stateName")
		}

		cache, err := resolver.ForTeam(ctx, teamID)
		if err != nil {
			return err
		}
		stateID := cache.FindByName(stateName)
		if stateID == "" {
			return errors.New(errors.EValidation, "no workflow state named "+stateName+" for team "+teamID)
		}

		delete(input, "stateName")
		input["stateId"] = stateID
		return nil
	}

	reg.Register("issue.create", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p mutateParams
		if err := json.Unmarshal(raw, &p); err != nil || p.Input == nil {
			return nil, errors.New(errors.EValidation, "input is required")
		}
		if err := resolveInput(ctx, p.Input); err != nil {
			return nil, err
		}
		return issueClient.Client.Mutate(ctx, "createIssue", "IssueCreateInput", "issue", p.Input)
	})

	reg.Register("issue.update", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p mutateParams
		if err := json.Unmarshal(raw, &p); err != nil || p.Input == nil {
			return nil, errors.New(errors.EValidation, "input is required")
		}
		if err := resolveInput(ctx, p.Input); err != nil {
			return nil, err
		}
		return issueClient.Client.Mutate(ctx, "updateIssue", "IssueUpdateInput", "issue", p.Input)
	})
}
