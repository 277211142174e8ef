// Package methods wires the resource and search tool operations into a
// jsonrpc.MethodRegistry and their corresponding entries into a
// capability.Registry, the glue code startup runs once before accepting
// connections.
package methods

import (
	"context"
	"encoding/json"

	"github.com/pmbridge/mediation-server/internal/capability"
	"github.com/pmbridge/mediation-server/internal/jsonrpc"
	"github.com/pmbridge/mediation-server/internal/query"
	"github.com/pmbridge/mediation-server/internal/resources"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

// listParams is the params shape for "<type>.list".
type listParams struct {
	Filter map[string]any `json:"filter"`
	Sort   *sortParam     `json:"sort"`
	Limit  int            `json:"limit"`
	After  string         `json:"after"`
}

type sortParam struct {
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
}

type listResult[T any] struct {
	Nodes      []T            `json:"nodes"`
	TotalCount int            `json:"totalCount"`
	PageInfo   pageInfoResult `json:"pageInfo"`
}

type pageInfoResult struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// getParams is the params shape for "<type>.get".
type getParams struct {
	ID string `json:"id"`
}

// queryParams is the params shape for "<type>.query", the DSL-driven
// single-resource-type search that doesn't go through the merging search
// engine.
type queryParams struct {
	Query string `json:"query"`
}

// mutateParams is the params shape for "<type>.create"/"<type>.update".
type mutateParams struct {
	Input map[string]any `json:"input"`
}

// deleteParams is the params shape for "<type>.delete".
type deleteParams struct {
	ID string `json:"id"`
}

const defaultListLimit = 20

// registerResourceMethods binds the list/get/query/create/update/delete
// methods for one resource type and registers its resource capability.
func registerResourceMethods[T any](
	reg *jsonrpc.MethodRegistry,
	caps *capability.Registry,
	typ resources.Type,
	client *resources.Client[T],
	aliases resources.FieldAliases,
	log logger.Logger,
) {
	prefix := string(typ)

	reg.Register(prefix+".list", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p listParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, errors.Wrap(err, errors.EValidation, "invalid list params")
			}
		}
		limit := p.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}

		var sortSpec *resources.SortSpec
		if p.Sort != nil {
			sortSpec = &resources.SortSpec{Field: p.Sort.Field, Ascending: p.Sort.Ascending}
		}

		nodes, page, total, err := client.List(ctx, p.Filter, sortSpec, limit, p.After)
		if err != nil {
			return nil, err
		}
		return listResult[T]{
			Nodes:      nodes,
			TotalCount: total,
			PageInfo:   pageInfoResult{HasNextPage: page.HasNextPage, EndCursor: page.EndCursor},
		}, nil
	})

	reg.Register(prefix+".get", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p getParams
		if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
			return nil, errors.New(errors.EValidation, "id is required")
		}
		return client.Get(ctx, p.ID)
	})

	reg.Register(prefix+".query", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p queryParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.Wrap(err, errors.EValidation, "invalid query params")
		}
		q, err := query.Parse(p.Query)
		if err != nil {
			return nil, err
		}

		filter, err := query.Compile(q.Conditions, aliases)
		if err != nil {
			return nil, err
		}
		var sortSpec *resources.SortSpec
		if q.Sort != nil {
			if field, ok := query.CompileSort(q.Sort, aliases); ok {
				sortSpec = &resources.SortSpec{Field: field, Ascending: q.Sort.Direction == query.Asc}
			} else if log != nil {
				log.Warnw("dropping unsupported sort field", "resourceType", typ, "field", q.Sort.Field)
			}
		}
		limit := q.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}

		nodes, page, total, err := client.List(ctx, filter, sortSpec, limit, "")
		if err != nil {
			return nil, err
		}
		return listResult[T]{
			Nodes:      nodes,
			TotalCount: total,
			PageInfo:   pageInfoResult{HasNextPage: page.HasNextPage, EndCursor: page.EndCursor},
		}, nil
	})

	reg.Register(prefix+".create", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p mutateParams
		if err := json.Unmarshal(raw, &p); err != nil || p.Input == nil {
			return nil, errors.New(errors.EValidation, "input is required")
		}
		return client.Mutate(ctx, "create"+capitalize(prefix), capitalize(prefix)+"CreateInput", prefix, p.Input)
	})

	reg.Register(prefix+".update", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p mutateParams
		if err := json.Unmarshal(raw, &p); err != nil || p.Input == nil {
			return nil, errors.New(errors.EValidation, "input is required")
		}
		return client.Mutate(ctx, "update"+capitalize(prefix), capitalize(prefix)+"UpdateInput", prefix, p.Input)
	})

	reg.Register(prefix+".delete", func(ctx context.Context, _ *jsonrpc.Session, raw json.RawMessage) (any, error) {
		var p deleteParams
		if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
			return nil, errors.New(errors.EValidation, "id is required")
		}
		_, err := client.Mutate(ctx, "delete"+capitalize(prefix), "DeleteInput", prefix, map[string]any{"id": p.ID})
		return nil, err
	})

	caps.Register(capability.Capability{
		Name: prefix,
		Kind: capability.KindResource,
		SupportedOps: []capability.ResourceOp{
			capability.OpList, capability.OpGet, capability.OpQuery,
			capability.OpCreate, capability.OpUpdate, capability.OpDelete,
		},
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
