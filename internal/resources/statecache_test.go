package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateResolverCachesPerTeam(t *testing.T) {
	var calls int
	up := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"workflowStates": map[string]any{
					"nodes": []map[string]any{
						{"id": "s1", "name": "Backlog", "type": "backlog"},
						{"id": "s2", "name": "Done", "type": "completed"},
					},
					"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
					"totalCount": 2,
				},
			},
		})
	})

	resolver := NewStateResolver(up)

	sc1, err := resolver.ForTeam(context.Background(), "team-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sc1.OpenStateID)
	assert.Equal(t, "s2", sc1.FindByType("completed"))
	assert.Equal(t, "s1", sc1.FindByName("Backlog"))

	sc2, err := resolver.ForTeam(context.Background(), "team-1")
	require.NoError(t, err)
	assert.Same(t, sc1, sc2)
	assert.Equal(t, 1, calls)

	resolver.Invalidate("team-1")
	_, err = resolver.ForTeam(context.Background(), "team-1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
