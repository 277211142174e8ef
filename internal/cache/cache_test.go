package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmbridge/mediation-server/internal/resources"
)

func TestGetMissOnAbsentKey(t *testing.T) {
	c := New(true, time.Minute, 100, 2, 10)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestSetThenGetHits(t *testing.T) {
	c := New(true, time.Minute, 100, 2, 10)
	c.Set("h1", "payload", []resources.Type{resources.TypeIssue}, 0)

	got, ok := c.Get("h1")
	require.True(t, ok)
	assert.Equal(t, "payload", got)
}

func TestDisabledCacheNeverHits(t *testing.T) {
	c := New(false, time.Minute, 100, 2, 10)
	c.Set("h1", "payload", []resources.Type{resources.TypeIssue}, 0)

	_, ok := c.Get("h1")
	assert.False(t, ok)
}

func TestExpiredEntryIsMissAndRemovedFromIndex(t *testing.T) {
	c := New(true, time.Minute, 100, 2, 10)
	c.Set("h1", "payload", []resources.Type{resources.TypeIssue}, time.Nanosecond)

	time.Sleep(2 * time.Millisecond)

	_, ok := c.Get("h1")
	assert.False(t, ok)

	c.mu.Lock()
	_, stillIndexed := c.entries["h1"]
	_, stillByType := c.byType[resources.TypeIssue]["h1"]
	c.mu.Unlock()
	assert.False(t, stillIndexed)
	assert.False(t, stillByType)
}

func TestInvalidateByTypeRemovesMatchingEntries(t *testing.T) {
	c := New(true, time.Minute, 100, 2, 10)
	c.Set("issue-1", "a", []resources.Type{resources.TypeIssue}, 0)
	c.Set("project-1", "b", []resources.Type{resources.TypeProject}, 0)

	c.Invalidate(resources.TypeIssue)

	_, issueHit := c.Get("issue-1")
	assert.False(t, issueHit)

	projectPayload, projectHit := c.Get("project-1")
	require.True(t, projectHit)
	assert.Equal(t, "b", projectPayload)
}

func TestInvalidateWithNoTypeClearsEverything(t *testing.T) {
	c := New(true, time.Minute, 100, 2, 10)
	c.Set("a", 1, []resources.Type{resources.TypeIssue}, 0)
	c.Set("b", 2, []resources.Type{resources.TypeProject}, 0)

	c.Invalidate("")

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCleanupDropsExpiredBeforeCapacityEviction(t *testing.T) {
	c := New(true, time.Minute, 2, 2, 0)
	c.Set("stale", 1, []resources.Type{resources.TypeIssue}, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)

	c.Set("fresh1", 2, []resources.Type{resources.TypeIssue}, 0)
	c.Set("fresh2", 3, []resources.Type{resources.TypeIssue}, 0)

	c.mu.Lock()
	_, staleStillThere := c.entries["stale"]
	count := len(c.entries)
	c.mu.Unlock()

	assert.False(t, staleStillThere)
	assert.LessOrEqual(t, count, 2)
}

func TestCleanupEvictsLowAccessCountBeforeLRU(t *testing.T) {
	c := New(true, time.Hour, 1, 1, 0)
	c.Set("touched", 1, []resources.Type{resources.TypeIssue}, 0)
	c.Get("touched")
	c.Get("touched")

	c.Set("untouched", 2, []resources.Type{resources.TypeIssue}, 0)

	c.mu.Lock()
	_, untouchedStillThere := c.entries["untouched"]
	_, touchedStillThere := c.entries["touched"]
	c.mu.Unlock()

	assert.False(t, untouchedStillThere)
	assert.True(t, touchedStillThere)
}

func TestStatsReportsCountsByType(t *testing.T) {
	c := New(true, time.Minute, 100, 2, 10)
	c.Set("a", 1, []resources.Type{resources.TypeIssue}, 0)
	c.Set("b", 2, []resources.Type{resources.TypeProject}, 0)

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.PerTypeCounts[resources.TypeIssue])
	assert.Equal(t, 1, stats.PerTypeCounts[resources.TypeProject])
	assert.True(t, stats.Enabled)
}

func TestHashQueryIsStableAcrossEqualValues(t *testing.T) {
	type q struct {
		Text string
		Lim  int
	}
	h1 := HashQuery(q{Text: "broken login", Lim: 10})
	h2 := HashQuery(q{Text: "broken login", Lim: 10})
	h3 := HashQuery(q{Text: "broken login", Lim: 20})

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}
