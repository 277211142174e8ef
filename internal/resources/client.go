package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pmbridge/mediation-server/internal/upstream"
	"github.com/pmbridge/mediation-server/pkg/errors"
)

// SortSpec is a single orderBy clause compiled by the query builder.
type SortSpec struct {
	Field     string
	Ascending bool
}

// Client is a generic GraphQL client for one resource type: it owns the
// type's canonical selection set and query/mutation names, and delegates
// transport to the upstream client.
type Client[T any] struct {
	Type        Type
	QueryName   string // e.g. "issues", used for list/query operations
	GetName     string // e.g. "issue", used for get-by-id
	Selection   string // fixed GraphQL selection set for a single node
	FieldAlias  FieldAliases
	up          *upstream.Client
}

// NewClient builds a resource client bound to the given upstream executor.
func NewClient[T any](up *upstream.Client, typ Type, queryName, getName, selection string, aliases FieldAliases) *Client[T] {
	return &Client[T]{
		Type:       typ,
		QueryName:  queryName,
		GetName:    getName,
		Selection:  selection,
		FieldAlias: aliases,
		up:         up,
	}
}

type nodesEnvelope[T any] struct {
	Nodes      []T `json:"nodes"`
	PageInfo   struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
	TotalCount int `json:"totalCount"`
}

// List runs the resource type's fixed-selection list query with the given
// compiled filter, sort, limit, and pagination cursor.
func (c *Client[T]) List(ctx context.Context, filter map[string]any, sort *SortSpec, limit int, after string) ([]T, PageInfo, int, error) {
	query := fmt.Sprintf(`
		query Search($filter: %sFilter, $first: Int!, $after: String%s) {
			%s(filter: $filter, first: $first, after: $after%s) {
				nodes { %s }
				pageInfo { hasNextPage endCursor }
				totalCount
			}
		}
	`, capitalize(string(c.Type)), orderByParamDecl(sort), c.QueryName, orderByArg(sort), c.Selection)

	vars := map[string]any{
		"filter": filter,
		"first":  limit,
	}
	if after != "" {
		vars["after"] = after
	}
	if sort != nil {
		dir := "ASC"
		if !sort.Ascending {
			dir = "DESC"
		}
		vars["orderBy"] = map[string]string{sort.Field: dir}
	}

	var root map[string]nodesEnvelope[T]
	if err := c.up.Execute(ctx, upstream.Request{Query: query, Variables: vars}, &root); err != nil {
		return nil, PageInfo{}, 0, err
	}
	env, ok := root[c.QueryName]
	if !ok {
		return nil, PageInfo{}, 0, errors.New(errors.EUpstream, "upstream response missing %q field", c.QueryName)
	}
	return env.Nodes, PageInfo{HasNextPage: env.PageInfo.HasNextPage, EndCursor: env.PageInfo.EndCursor}, env.TotalCount, nil
}

// Get fetches a single node by id; a nil upstream value maps to NotFound.
func (c *Client[T]) Get(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf(`
		query Get($id: String!) {
			%s(id: $id) { %s }
		}
	`, c.GetName, c.Selection)

	var root map[string]*T
	if err := c.up.Execute(ctx, upstream.Request{Query: query, Variables: map[string]any{"id": id}}, &root); err != nil {
		return nil, err
	}
	node, ok := root[c.GetName]
	if !ok || node == nil {
		return nil, errors.New(errors.ENotFound, "%s %s not found", c.Type, id)
	}
	return node, nil
}

// Mutate runs a create/update/delete mutation whose payload has the shape
// `{success, <nodeField>: {...}}`, and maps success=false to UpstreamError.
func (c *Client[T]) Mutate(ctx context.Context, mutationName, inputType, nodeField string, input map[string]any) (*T, error) {
	query := fmt.Sprintf(`
		mutation Mutate($input: %s!) {
			%s(input: $input) {
				success
				%s { %s }
			}
		}
	`, inputType, mutationName, nodeField, c.Selection)

	var root map[string]map[string]json.RawMessage
	if err := c.up.Execute(ctx, upstream.Request{Query: query, Variables: map[string]any{"input": input}}, &root); err != nil {
		return nil, err
	}
	payload, ok := root[mutationName]
	if !ok {
		return nil, errors.New(errors.EUpstream, "upstream response missing %q field", mutationName)
	}

	var success bool
	if raw, ok := payload["success"]; ok {
		_ = json.Unmarshal(raw, &success)
	}
	if !success {
		return nil, errors.New(errors.EUpstream, "%s reported failure", mutationName)
	}

	raw, ok := payload[nodeField]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var node T
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, errors.Wrap(err, errors.EUpstream, "failed to decode %s result", c.Type)
	}
	return &node, nil
}

func orderByParamDecl(sort *SortSpec) string {
	if sort == nil {
		return ""
	}
	return ", $orderBy: JSON"
}

func orderByArg(sort *SortSpec) string {
	if sort == nil {
		return ""
	}
	return ", orderBy: $orderBy"
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
