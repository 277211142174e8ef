package resources

import (
	"context"
	"sync"

	"github.com/pmbridge/mediation-server/internal/upstream"
)

const maxStatePages = 10

// StateCache indexes a team's workflow states by id and type, so resource
// clients can resolve "the open state" or "the state named X" without a
// round trip per lookup.
type StateCache struct {
	TeamID     string
	States     []WorkflowState
	ByID       map[string]WorkflowState
	OpenStateID string
}

// FindByType returns the first cached state of the given workflow-state
// type (e.g. "unstarted", "completed", "canceled"), or "" if none matches.
func (sc *StateCache) FindByType(stateType string) string {
	for _, s := range sc.States {
		if s.Type == stateType {
			return s.ID
		}
	}
	return ""
}

// FindByName returns the cached state id with the given name, or "" if
// absent.
func (sc *StateCache) FindByName(name string) string {
	for _, s := range sc.States {
		if s.Name == name {
			return s.ID
		}
	}
	return ""
}

// StateResolver builds and caches per-team StateCache values, refreshing
// lazily on first use per team.
type StateResolver struct {
	client *Client[WorkflowState]

	mu    sync.Mutex
	cache map[string]*StateCache
}

// NewStateResolver builds a resolver bound to the given upstream executor.
func NewStateResolver(up *upstream.Client) *StateResolver {
	return &StateResolver{
		client: NewWorkflowStateClient(up),
		cache:  make(map[string]*StateCache),
	}
}

// ForTeam returns the cached StateCache for a team, fetching and caching it
// on first request.
func (r *StateResolver) ForTeam(ctx context.Context, teamID string) (*StateCache, error) {
	r.mu.Lock()
	if sc, ok := r.cache[teamID]; ok {
		r.mu.Unlock()
		return sc, nil
	}
	r.mu.Unlock()

	filter := map[string]any{
		"team": map[string]any{"id": map[string]any{"eq": teamID}},
	}
	states, err := upstream.Paginate(ctx, func(ctx context.Context, after string) ([]WorkflowState, upstream.PageInfo, error) {
		nodes, page, _, err := r.client.List(ctx, filter, nil, 100, after)
		return nodes, upstream.PageInfo{HasNextPage: page.HasNextPage, EndCursor: page.EndCursor}, err
	}, maxStatePages)
	if err != nil {
		return nil, err
	}

	sc := &StateCache{
		TeamID: teamID,
		States: states,
		ByID:   make(map[string]WorkflowState, len(states)),
	}
	for _, s := range states {
		sc.ByID[s.ID] = s
		if sc.OpenStateID == "" && (s.Type == "unstarted" || s.Type == "backlog") {
			sc.OpenStateID = s.ID
		}
	}

	r.mu.Lock()
	r.cache[teamID] = sc
	r.mu.Unlock()
	return sc, nil
}

// Invalidate drops the cached state set for a team, forcing the next
// ForTeam call to refetch.
func (r *StateResolver) Invalidate(teamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, teamID)
}
