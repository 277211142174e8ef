package methods

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap/zaptest/observer"

	"github.com/pmbridge/mediation-server/internal/cache"
	"github.com/pmbridge/mediation-server/internal/capability"
	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/internal/jsonrpc"
	"github.com/pmbridge/mediation-server/internal/search"
	"github.com/pmbridge/mediation-server/internal/upstream"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

type fixture struct {
	field string
	data  map[string]any
}

func testWiring(t *testing.T, fixtures []fixture) (*jsonrpc.MethodRegistry, *capability.Registry) {
	reg, caps, _ := testWiringWithLogs(t, fixtures)
	return reg, caps
}

func testWiringWithLogs(t *testing.T, fixtures []fixture) (*jsonrpc.MethodRegistry, *capability.Registry, *observer.ObservedLogs) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		for _, f := range fixtures {
			if strings.Contains(body.Query, f.field+"(") || strings.Contains(body.Query, f.field+" ") || strings.HasSuffix(strings.TrimSpace(body.Query), f.field) {
				json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{f.field: f.data}})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	t.Cleanup(srv.Close)

	log, logs := logger.NewForTest()
	up := upstream.NewClient(config.UpstreamConfig{
		Endpoint:           srv.URL,
		Timeout:            5 * time.Second,
		RateLimitPerHour:   1000,
		ConcurrentRequests: 4,
		AuthType:           config.AuthTypeAPIKey,
		APIKey:             "k",
	}, log)

	cfg := config.Default()
	c := cache.New(false, cfg.Cache.TTL, cfg.Cache.MaxSize, cfg.Cache.MinAccessCount, cfg.Cache.EvictionSlack)
	engine := search.NewEngine(cfg.Search, cfg.Optimizer, c, up, log)
	formatter := search.NewFormatter(cfg.Optimizer)

	caps := capability.NewRegistry()
	reg := jsonrpc.NewMethodRegistry(caps)
	Wire(reg, caps, up, engine, formatter, log)
	return reg, caps, logs
}

func TestWireRegistersResourceCapabilitiesForEveryType(t *testing.T) {
	_, caps := testWiring(t, nil)

	names := make(map[string]bool)
	for _, c := range caps.List() {
		if c.Kind == capability.KindResource {
			names[c.Name] = true
		}
	}
	for _, want := range []string{"issue", "project", "team", "user", "comment", "label", "customField", "workflowState", "cycle"} {
		assert.True(t, names[want], "expected resource capability %q", want)
	}
}

func TestWireRegistersSearchTool(t *testing.T) {
	_, caps := testWiring(t, nil)

	var found bool
	for _, c := range caps.List() {
		if c.Name == "search" && c.Kind == capability.KindTool {
			found = true
			assert.NotNil(t, c.InputSchema)
		}
	}
	assert.True(t, found, "expected a search tool capability")
}

func TestIssueListHandlerReturnsNodes(t *testing.T) {
	reg, _ := testWiring(t, []fixture{
		{field: "issues", data: map[string]any{
			"nodes":      []map[string]any{{"id": "1", "identifier": "ENG-1"}},
			"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
			"totalCount": 1,
		}},
	})

	handler, ok := reg.Lookup("issue.list")
	require.True(t, ok)

	result, err := handler(context.Background(), nil, json.RawMessage(`{}`))
	require.NoError(t, err)

	out, err := json.Marshal(result)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))
	assert.EqualValues(t, 1, parsed["totalCount"])
}

func TestIssueGetHandlerRequiresID(t *testing.T) {
	reg, _ := testWiring(t, nil)
	handler, ok := reg.Lookup("issue.get")
	require.True(t, ok)

	_, err := handler(context.Background(), nil, json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestIssueDeleteHandlerCallsMutation(t *testing.T) {
	reg, _ := testWiring(t, []fixture{
		{field: "deleteIssue", data: map[string]any{"success": true, "issue": nil}},
	})

	handler, ok := reg.Lookup("issue.delete")
	require.True(t, ok)

	_, err := handler(context.Background(), nil, json.RawMessage(`{"id":"1"}`))
	assert.NoError(t, err)
}

func TestSearchHandlerRejectsEmptyQuery(t *testing.T) {
	reg, _ := testWiring(t, nil)
	handler, ok := reg.Lookup("search")
	require.True(t, ok)

	_, err := handler(context.Background(), nil, json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestIssueCreateResolvesStateName(t *testing.T) {
	reg, _ := testWiring(t, []fixture{
		{field: "workflowStates", data: map[string]any{
			"nodes": []map[string]any{
				{"id": "state-1", "name": "In Progress", "type": "started"},
				{"id": "state-2", "name": "Done", "type": "completed"},
			},
			"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
			"totalCount": 2,
		}},
		{field: "createIssue", data: map[string]any{"issue": map[string]any{"id": "i1", "identifier": "ENG-9"}, "success": true}},
	})

	handler, ok := reg.Lookup("issue.create")
	require.True(t, ok)

	result, err := handler(context.Background(), nil, json.RawMessage(`{"input":{"title":"fix it","teamId":"team-1","stateName":"In Progress"}}`))
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestIssueCreateRejectsUnknownStateName(t *testing.T) {
	reg, _ := testWiring(t, []fixture{
		{field: "workflowStates", data: map[string]any{
			"nodes":      []map[string]any{{"id": "state-1", "name": "In Progress", "type": "started"}},
			"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
			"totalCount": 1,
		}},
	})

	handler, ok := reg.Lookup("issue.create")
	require.True(t, ok)

	_, err := handler(context.Background(), nil, json.RawMessage(`{"input":{"title":"fix it","teamId":"team-1","stateName":"Nope"}}`))
	assert.Error(t, err)
}

func TestIssueCreateRequiresTeamIDWhenStateNameGiven(t *testing.T) {
	reg, _ := testWiring(t, nil)

	handler, ok := reg.Lookup("issue.create")
	require.True(t, ok)

	_, err := handler(context.Background(), nil, json.RawMessage(`{"input":{"title":"fix it","stateName":"In Progress"}}`))
	assert.Error(t, err)
}

func TestIssueQueryHandlerLogsWarningOnUnsupportedSortField(t *testing.T) {
	reg, _, logs := testWiringWithLogs(t, []fixture{
		{field: "issues", data: map[string]any{
			"nodes":      []map[string]any{{"id": "1", "identifier": "ENG-1"}},
			"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
			"totalCount": 1,
		}},
	})

	handler, ok := reg.Lookup("issue.query")
	require.True(t, ok)

	_, err := handler(context.Background(), nil, json.RawMessage(`{"query":"sort:nonexistentField x"}`))
	require.NoError(t, err)

	found := false
	for _, entry := range logs.All() {
		if strings.Contains(entry.Message, "dropping unsupported sort field") {
			found = true
		}
	}
	assert.True(t, found, "expected a warning log for the unsupported sort field")
}

func TestSearchHandlerReturnsPaginatedResults(t *testing.T) {
	reg, _ := testWiring(t, []fixture{
		{field: "issues", data: map[string]any{
			"nodes": []map[string]any{
				{"id": "1", "identifier": "ENG-1", "title": "fix login bug", "updatedAt": "2026-01-01T00:00:00Z"},
			},
			"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
			"totalCount": 1,
		}},
	})

	handler, ok := reg.Lookup("search")
	require.True(t, ok)

	result, err := handler(context.Background(), nil, json.RawMessage(`{"query":"login type:issue"}`))
	require.NoError(t, err)

	out, err := json.Marshal(result)
	require.NoError(t, err)
	var page search.Page
	require.NoError(t, json.Unmarshal(out, &page))
}
