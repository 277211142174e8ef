package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmbridge/mediation-server/internal/config"
)

func testFormatter() *Formatter {
	return NewFormatter(config.Default().Optimizer)
}

func anyResults(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestPaginateCapsAtResultsPerPage(t *testing.T) {
	cfg := config.Default().Optimizer
	cfg.ResultsPerPage = 5
	f := NewFormatter(cfg)

	page := f.Paginate(anyResults(12), "hash1")
	assert.Equal(t, 5, page.LoadingState.Loaded)
	assert.Equal(t, 12, page.LoadingState.Total)
	assert.True(t, page.LoadingState.HasMore)
	assert.NotEmpty(t, page.LoadingState.NextCursor)
}

func TestPaginateNoMoreWhenAllFit(t *testing.T) {
	f := testFormatter()
	page := f.Paginate(anyResults(2), "hash1")
	assert.False(t, page.LoadingState.HasMore)
	assert.Empty(t, page.LoadingState.NextCursor)
}

func TestBatchesSplitsAtMaxBatchSize(t *testing.T) {
	cfg := config.Default().Optimizer
	cfg.MaxBatchSize = 4
	f := NewFormatter(cfg)

	batches := f.Batches(anyResults(10))
	require.Len(t, batches, 3)
	assert.Equal(t, 4, batches[0].BatchSize)
	assert.Equal(t, 2, batches[2].BatchSize)
	assert.True(t, batches[0].HasMore)
	assert.False(t, batches[2].HasMore)
}

func TestChunksCarryTotalCount(t *testing.T) {
	cfg := config.Default().Optimizer
	cfg.StreamChunkSize = 3
	f := NewFormatter(cfg)

	chunks := f.Chunks(anyResults(7))
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, 7, c.TotalCount)
	}
	assert.False(t, chunks[2].HasMore)
}

func TestCompressSkipsSmallPayloads(t *testing.T) {
	f := testFormatter()
	compressed, err := f.Compress(map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Nil(t, compressed)
}

func TestCompressWrapsLargePayloads(t *testing.T) {
	cfg := config.Default().Optimizer
	cfg.CompressionThreshold = 10
	f := NewFormatter(cfg)

	payload := map[string]string{"data": strings.Repeat("x", 1000)}
	compressed, err := f.Compress(payload)
	require.NoError(t, err)
	require.NotNil(t, compressed)
	assert.True(t, compressed.Compressed)
	assert.Equal(t, "gzip+base64", compressed.Format)
	assert.Greater(t, compressed.OriginalSize, 0)
}
