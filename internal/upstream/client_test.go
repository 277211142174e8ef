package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	log, _ := logger.NewForTest()
	return NewClient(config.UpstreamConfig{
		Endpoint:           endpoint,
		Timeout:            5 * time.Second,
		MaxRetries:         2,
		RetryBaseDelay:     time.Millisecond,
		RateLimitPerHour:   1000,
		ConcurrentRequests: 4,
		AuthType:           config.AuthTypeAPIKey,
		APIKey:             "test-key",
	}, log)
}

func TestExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		w.Header().Set("X-RateLimit-Remaining", "999")
		w.Header().Set("X-RateLimit-Reset", "9999999999")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"ok": true}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Execute(context.Background(), Request{Query: "{ ok }"}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, 999, c.RateLimit().Remaining)
}

func TestExecuteUnauthorizedNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	err := c.Execute(context.Background(), Request{Query: "{ ok }"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.EUnauthorized, errors.Code(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"ok": true}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Execute(context.Background(), Request{Query: "{ ok }"}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecuteGraphQLErrorsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "field not found"}},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	err := c.Execute(context.Background(), Request{Query: "{ bogus }"}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteFailsFastWhenRateLimitResetIsFarOut(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"ok": true}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.mu.Lock()
	c.rateLimit = RateLimitState{Remaining: 0, ResetAt: time.Now().Add(5 * time.Minute)}
	c.mu.Unlock()

	err := c.Execute(context.Background(), Request{Query: "{ ok }"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ERateLimited, errors.Code(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestExecuteSleepsOutRateLimitResetWithinThreshold(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("X-RateLimit-Remaining", "10")
		w.Header().Set("X-RateLimit-Reset", "9999999999")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"ok": true}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.mu.Lock()
	c.rateLimit = RateLimitState{Remaining: 0, ResetAt: time.Now().Add(20 * time.Millisecond)}
	c.mu.Unlock()

	start := time.Now()
	err := c.Execute(context.Background(), Request{Query: "{ ok }"}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteReturnsCancelledIfContextEndsWhileWaitingOnRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"ok": true}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.mu.Lock()
	c.rateLimit = RateLimitState{Remaining: 0, ResetAt: time.Now().Add(5 * time.Second)}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := c.Execute(ctx, Request{Query: "{ ok }"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ECancelled, errors.Code(err))
}

func TestPaginateCollectsAllPages(t *testing.T) {
	pages := [][]int{{1, 2}, {3, 4}, {5}}
	fetch := func(_ context.Context, after string) ([]int, PageInfo, error) {
		idx := 0
		if after != "" {
			idx = int(after[0] - '0')
		}
		nodes := pages[idx]
		hasNext := idx < len(pages)-1
		next := ""
		if hasNext {
			next = string(rune('0' + idx + 1))
		}
		return nodes, PageInfo{HasNextPage: hasNext, EndCursor: next}, nil
	}

	all, err := Paginate(context.Background(), fetch, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, all)
}
