package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pmbridge/mediation-server/internal/cache"
	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/internal/query"
	"github.com/pmbridge/mediation-server/internal/resources"
	"github.com/pmbridge/mediation-server/internal/upstream"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

// Response is the engine's complete answer to a Search call.
type Response struct {
	Results         []resources.SearchResult            `json:"results"`
	Groups          map[string][]resources.SearchResult `json:"groups,omitempty"`
	TotalCount      int                                 `json:"totalCount"`
	HasMore         bool                                `json:"hasMore"`
	ExecutionTimeMs int64                               `json:"executionTimeMs"`
	FromCache       bool                                `json:"fromCache"`
}

// Engine ties the query, resources, and cache packages together: it
// resolves a SearchQuery's per-type filters, fans the resulting GraphQL
// calls out concurrently, merges and scores what comes back, and caches
// the result.
type Engine struct {
	cfg       config.SearchConfig
	optimizer *Optimizer
	formatter *Formatter
	cache     *cache.Cache
	providers map[resources.Type]resourceLister
	log       logger.Logger
}

// NewEngine builds a search engine wired to the given upstream executor and
// result cache.
func NewEngine(cfg config.SearchConfig, optCfg config.OptimizerConfig, c *cache.Cache, up *upstream.Client, log logger.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		optimizer: NewOptimizer(optCfg),
		formatter: NewFormatter(optCfg),
		cache:     c,
		providers: defaultProviders(up),
		log:       log,
	}
}

// Search runs the full pipeline: cache lookup, parallel per-type fan-out,
// merge, score, deduplicate, limit, and group.
func (e *Engine) Search(ctx context.Context, q *query.SearchQuery) (*Response, error) {
	start := time.Now()

	limit := q.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	hash := cache.HashQuery(q)
	if cached, ok := e.cache.Get(hash); ok {
		if resp, ok := cached.(*Response); ok {
			hit := *resp
			hit.FromCache = true
			return &hit, nil
		}
	}

	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	fanoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, subHasMore, err := e.fanout(fanoutCtx, q, limit)
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Score = e.optimizer.Score(results[i], q.Text)
		if trimmed, truncated := e.optimizer.Trim(results[i].Description); truncated {
			results[i].Description = trimmed
		}
	}

	results = Deduplicate(results)
	results = e.optimizer.Limit(results)

	hasMore := subHasMore
	if len(results) > limit {
		results = results[:limit]
		hasMore = true
	}

	resp := &Response{
		Results:         results,
		TotalCount:      len(results),
		HasMore:         hasMore,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
	if q.GroupBy != "" {
		resp.Groups = Group(results, q.GroupBy)
	}

	e.cache.Set(hash, resp, q.ResourceTypes, 0)
	return resp, nil
}

// fanoutResult is one resource type's outcome, collected via a mutex rather
// than a buffered channel so a failing type can be distinguished from a
// type that legitimately returned zero results.
type fanoutResult struct {
	resourceType resources.Type
	results      []resources.SearchResult
	hasMore      bool
	err          error
}

// fanout issues one List/Search call per requested resource type
// concurrently, and returns the merged, sorted result set plus whether any
// sub-response had more results than it returned.
func (e *Engine) fanout(ctx context.Context, q *query.SearchQuery, limit int) ([]resources.SearchResult, bool, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make(map[resources.Type]fanoutResult, len(q.ResourceTypes))

	for _, t := range q.ResourceTypes {
		provider, ok := e.providers[t]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(t resources.Type, provider resourceLister) {
			defer wg.Done()

			filter, sortField, ascending, err := e.compileFor(t, provider, q)
			if err != nil {
				mu.Lock()
				outcomes[t] = fanoutResult{resourceType: t, err: err}
				mu.Unlock()
				return
			}

			results, total, hasMore, err := provider.Search(ctx, filter, sortField, ascending, limit)
			if total > len(results) {
				hasMore = true
			}
			mu.Lock()
			outcomes[t] = fanoutResult{resourceType: t, results: results, hasMore: hasMore, err: err}
			mu.Unlock()
		}(t, provider)
	}

	wg.Wait()

	if ctx.Err() != nil {
		if errors.IsContextCanceledError(ctx.Err()) {
			return nil, false, errors.Wrap(ctx.Err(), errors.ECancelled, "search was cancelled before all resource types returned")
		}
		return nil, false, errors.Wrap(ctx.Err(), errors.ETimeout, "search timed out before all resource types returned")
	}

	var merged []resources.SearchResult
	var hasMore bool
	for _, t := range q.ResourceTypes {
		outcome, ok := outcomes[t]
		if !ok {
			continue
		}
		if outcome.err != nil {
			e.log.Warnw("resource type search failed", "resourceType", t, "error", outcome.err)
			continue
		}
		merged = append(merged, outcome.results...)
		if outcome.hasMore {
			hasMore = true
		}
	}

	sort.SliceStable(merged, mergeLess(merged, q.Sort))
	return merged, hasMore, nil
}

// mergeLess returns the comparator used to order the merged, cross-type
// result set: by the query's requested sort field when one was given
// (string fields compare case-insensitively, time fields chronologically),
// direction-aware; falling back to most-recently-updated first otherwise.
func mergeLess(merged []resources.SearchResult, srt *query.Sort) func(i, j int) bool {
	if srt == nil {
		return func(i, j int) bool {
			return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
		}
	}
	ascending := srt.Direction == query.Asc
	return func(i, j int) bool {
		cmp := compareMergeField(merged[i], merged[j], srt.Field)
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	}
}

// compareMergeField compares two results on one of SearchResult's shared
// fields, returning -1/0/1. Unrecognized fields fall back to UpdatedAt, the
// same default mergeLess uses when the query has no sort at all.
func compareMergeField(a, b resources.SearchResult, field string) int {
	switch field {
	case "createdAt":
		return compareTime(a.CreatedAt, b.CreatedAt)
	case "title", "name":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "identifier":
		return strings.Compare(strings.ToLower(a.Identifier), strings.ToLower(b.Identifier))
	case "team":
		return strings.Compare(strings.ToLower(a.Team), strings.ToLower(b.Team))
	default:
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// compileFor builds the GraphQL filter variable and sort field for one
// resource type, remapping the query's shared free-text condition field
// ("title" or "name") onto whichever the type actually supports, dropping
// any other condition the type's field-alias table doesn't recognize, and
// appending the type's archived-exclusion condition unless includeArchived
// is set.
func (e *Engine) compileFor(t resources.Type, provider resourceLister, q *query.SearchQuery) (map[string]any, string, bool, error) {
	aliases := provider.FieldAliases()

	conditions := make([]query.Condition, 0, len(q.Conditions)+1)
	for _, cond := range q.Conditions {
		if _, ok := aliases[cond.Field]; ok {
			conditions = append(conditions, cond)
			continue
		}
		if remapped, ok := remapFreeTextField(cond, aliases); ok {
			conditions = append(conditions, remapped)
		}
	}

	if !q.IncludeArchived {
		if excl, ok := archivedExclusions[t]; ok {
			if _, supported := aliases[excl.field]; supported {
				conditions = append(conditions, query.Condition{Field: excl.field, Operator: query.OpNeq, Value: excl.value})
			}
		}
	}

	filter, err := query.Compile(conditions, aliases)
	if err != nil {
		return nil, "", false, err
	}

	var sortField string
	var ascending bool
	if q.Sort != nil {
		if field, ok := query.CompileSort(q.Sort, aliases); ok {
			sortField = field
			ascending = q.Sort.Direction == query.Asc
		} else {
			e.log.Warnw("dropping unsupported sort field", "resourceType", t, "field", q.Sort.Field)
		}
	}
	return filter, sortField, ascending, nil
}

// remapFreeTextField retargets the DSL's free-text CONTAINS condition (on
// "title" or "name") onto whichever of the two a given type's alias table
// actually defines.
func remapFreeTextField(cond query.Condition, aliases resources.FieldAliases) (query.Condition, bool) {
	if cond.Operator != query.OpContains || (cond.Field != "title" && cond.Field != "name") {
		return query.Condition{}, false
	}
	for _, candidate := range []string{"title", "name"} {
		if _, ok := aliases[candidate]; ok {
			cond.Field = candidate
			return cond, true
		}
	}
	return query.Condition{}, false
}
