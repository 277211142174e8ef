package search

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"

	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/pagination"
)

// LoadingState describes how many of a result set's pages remain to be
// fetched, attached to the first page of a progressively-loaded response.
type LoadingState struct {
	Loaded     int    `json:"loaded"`
	Total      int    `json:"total"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Page is the first-page envelope a progressive response returns: up to
// ResultsPerPage results plus a loading state describing the remainder.
type Page struct {
	Results      any          `json:"results"`
	LoadingState LoadingState `json:"loadingState"`
}

// Batch is one slice of a batched response.
type Batch struct {
	BatchIndex  int  `json:"batchIndex"`
	TotalBatches int `json:"totalBatches"`
	BatchSize   int  `json:"batchSize"`
	HasMore     bool `json:"hasMore"`
	Results     any  `json:"results"`
}

// Chunk is one slice of a streamed response.
type Chunk struct {
	ChunkIndex  int  `json:"chunkIndex"`
	TotalChunks int  `json:"totalChunks"`
	HasMore     bool `json:"hasMore"`
	TotalCount  int  `json:"totalCount"`
	Results     any  `json:"results"`
}

// Compressed wraps a gzip+base64-encoded payload, used whenever a
// response's serialized size exceeds the configured threshold.
type Compressed struct {
	Compressed       bool    `json:"compressed"`
	OriginalSize     int     `json:"originalSize"`
	CompressedSize   int     `json:"compressedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
	Format           string  `json:"format"`
	Data             string  `json:"data"`
}

// Formatter shapes a scored, trimmed result set into the response envelope
// a client requested: a single progressively-loaded page, a fixed number
// of batches, or a bounded stream of chunks. It never recomputes Score;
// that's the optimizer's responsibility alone.
type Formatter struct {
	cfg config.OptimizerConfig
}

// NewFormatter builds a formatter from the given configuration.
func NewFormatter(cfg config.OptimizerConfig) *Formatter {
	return &Formatter{cfg: cfg}
}

// Paginate returns the first page of results (capped at ResultsPerPage)
// plus a loading-state block describing how many more remain. When there
// are more results, the block's NextCursor opaquely encodes page 1 of
// queryHash. No method in this server decodes that cursor, so later pages
// are not served from it.
func (f *Formatter) Paginate(results []any, queryHash string) Page {
	perPage := f.cfg.ResultsPerPage
	if perPage <= 0 || perPage > len(results) {
		perPage = len(results)
	}
	first := results[:perPage]
	hasMore := len(first) < len(results)

	state := LoadingState{
		Loaded:  len(first),
		Total:   len(results),
		HasMore: hasMore,
	}
	if hasMore {
		if cursor, err := pagination.Encode(pagination.PageCursor{QueryHash: queryHash, Page: 1}); err == nil {
			state.NextCursor = cursor
		}
	}

	return Page{
		Results:      first,
		LoadingState: state,
	}
}

// Batches splits results into batches of at most MaxBatchSize.
func (f *Formatter) Batches(results []any) []Batch {
	size := f.cfg.MaxBatchSize
	if size <= 0 {
		size = len(results)
	}
	if size <= 0 {
		return nil
	}

	total := (len(results) + size - 1) / size
	batches := make([]Batch, 0, total)
	for i := 0; i < total; i++ {
		from := i * size
		to := from + size
		if to > len(results) {
			to = len(results)
		}
		batches = append(batches, Batch{
			BatchIndex:   i,
			TotalBatches: total,
			BatchSize:    to - from,
			HasMore:      i < total-1,
			Results:      results[from:to],
		})
	}
	return batches
}

// Chunks splits results into chunks of at most StreamChunkSize, each
// carrying the overall result count so a consumer can size a progress
// indicator from the first chunk alone.
func (f *Formatter) Chunks(results []any) []Chunk {
	size := f.cfg.StreamChunkSize
	if size <= 0 {
		size = len(results)
	}
	if size <= 0 {
		return nil
	}

	total := (len(results) + size - 1) / size
	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		from := i * size
		to := from + size
		if to > len(results) {
			to = len(results)
		}
		chunks = append(chunks, Chunk{
			ChunkIndex:  i,
			TotalChunks: total,
			HasMore:     i < total-1,
			TotalCount:  len(results),
			Results:     results[from:to],
		})
	}
	return chunks
}

// Compress gzips and base64-encodes payload's JSON encoding if it exceeds
// CompressionThreshold bytes, returning the wrapped Compressed envelope. If
// the payload is at or under the threshold, or the threshold is not
// positive, it returns (nil, nil).
func (f *Formatter) Compress(payload any) (*Compressed, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.EInternal, "failed to marshal response for compression check")
	}
	if f.cfg.CompressionThreshold <= 0 || len(raw) <= f.cfg.CompressionThreshold {
		return nil, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, errors.Wrap(err, errors.EInternal, "failed to gzip response")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(err, errors.EInternal, "failed to close gzip writer")
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	ratio := float64(len(encoded)) / float64(len(raw))
	return &Compressed{
		Compressed:       true,
		OriginalSize:     len(raw),
		CompressedSize:   len(encoded),
		CompressionRatio: ratio,
		Format:           "gzip+base64",
		Data:             encoded,
	}, nil
}
