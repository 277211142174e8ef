// Package config holds the configuration structures the mediation server
// accepts, plus the YAML-file-and-environment-variable Load path a cmd/
// entrypoint uses to populate them.
package config

import (
	"time"

	"github.com/pmbridge/mediation-server/pkg/errors"
)

// AuthType identifies how the upstream client authenticates its requests.
type AuthType string

// Supported authentication types.
const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeOAuth  AuthType = "oauth"
)

// UpstreamConfig configures the GraphQL client that talks to the upstream
// project-management API.
type UpstreamConfig struct {
	// Endpoint is the upstream GraphQL HTTPS endpoint.
	Endpoint string `yaml:"endpoint" env:"UPSTREAM_ENDPOINT"`
	// Timeout bounds a single upstream call.
	Timeout time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT"`
	// MaxRetries caps retry attempts for transport/5xx failures (default 3).
	MaxRetries int `yaml:"max_retries" env:"UPSTREAM_MAX_RETRIES"`
	// RetryBaseDelay is the base delay for exponential backoff with full jitter.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"UPSTREAM_RETRY_BASE_DELAY"`
	// RateLimitPerHour is the hourly quota restored at each reset.
	RateLimitPerHour int `yaml:"rate_limit_per_hour" env:"UPSTREAM_RATE_LIMIT_PER_HOUR"`
	// ConcurrentRequests bounds simultaneous in-flight upstream calls.
	ConcurrentRequests int `yaml:"concurrent_requests" env:"UPSTREAM_CONCURRENT_REQUESTS"`
	// AuthType selects the Authorization header shape.
	AuthType AuthType `yaml:"auth_type" env:"UPSTREAM_AUTH_TYPE"`
	// APIKey is used when AuthType is AuthTypeAPIKey.
	APIKey string `yaml:"api_key" env:"UPSTREAM_API_KEY" sensitive:"true"`
	// OAuthToken is used when AuthType is AuthTypeOAuth.
	OAuthToken string `yaml:"oauth_token" env:"UPSTREAM_OAUTH_TOKEN" sensitive:"true"`
}

// Validate checks the upstream configuration for internal consistency.
func (c *UpstreamConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New(errors.EValidation, "upstream endpoint cannot be empty")
	}
	if c.ConcurrentRequests <= 0 {
		return errors.New(errors.EValidation, "concurrentRequests must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New(errors.EValidation, "maxRetries cannot be negative")
	}
	switch c.AuthType {
	case AuthTypeAPIKey:
		if c.APIKey == "" {
			return errors.New(errors.EValidation, "apiKey is required for api_key auth")
		}
	case AuthTypeOAuth:
		if c.OAuthToken == "" {
			return errors.New(errors.EValidation, "oauthToken is required for oauth auth")
		}
	default:
		return errors.New(errors.EValidation, "unsupported authType %q", c.AuthType)
	}
	return nil
}

// SearchConfig configures the search engine.
type SearchConfig struct {
	// DefaultLimit is used when a query omits a limit.
	DefaultLimit int `yaml:"default_limit" env:"SEARCH_DEFAULT_LIMIT"`
	// MaxLimit bounds what a query may request.
	MaxLimit int `yaml:"max_limit" env:"SEARCH_MAX_LIMIT"`
	// Timeout bounds the overall fan-out duration.
	Timeout time.Duration `yaml:"timeout" env:"SEARCH_TIMEOUT"`
	// IncludeArchivedDefault controls whether archived resources are included
	// when a query doesn't specify includeArchived.
	IncludeArchivedDefault bool `yaml:"include_archived_default" env:"SEARCH_INCLUDE_ARCHIVED_DEFAULT"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Enabled toggles the result cache entirely.
	Enabled bool `yaml:"enabled" env:"CACHE_ENABLED"`
	// TTL is the default entry lifetime.
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL"`
	// MaxSize is the entry capacity before eviction runs.
	MaxSize int `yaml:"max_size" env:"CACHE_MAX_SIZE"`
	// MinAccessCount is the access-count eviction floor: entries accessed
	// fewer times than this are the first eviction candidates once expired
	// entries have been cleared.
	MinAccessCount int `yaml:"min_access_count" env:"CACHE_MIN_ACCESS_COUNT"`
	// EvictionSlack is the extra headroom cleanup drops below MaxSize once it
	// has to start evicting by LRU.
	EvictionSlack int `yaml:"eviction_slack" env:"CACHE_EVICTION_SLACK"`
}

// OptimizerConfig configures relevance scoring and response shaping.
type OptimizerConfig struct {
	TitleWeight          float64 `yaml:"title_weight" env:"OPTIMIZER_TITLE_WEIGHT"`
	DescriptionWeight    float64 `yaml:"description_weight" env:"OPTIMIZER_DESCRIPTION_WEIGHT"`
	IdentifierWeight     float64 `yaml:"identifier_weight" env:"OPTIMIZER_IDENTIFIER_WEIGHT"`
	RecencyWeight        float64 `yaml:"recency_weight" env:"OPTIMIZER_RECENCY_WEIGHT"`
	ExactBoost           float64 `yaml:"exact_boost" env:"OPTIMIZER_EXACT_BOOST"`
	PartialBoost         float64 `yaml:"partial_boost" env:"OPTIMIZER_PARTIAL_BOOST"`
	MinScore             float64 `yaml:"min_score" env:"OPTIMIZER_MIN_SCORE"`
	MaxScore             float64 `yaml:"max_score" env:"OPTIMIZER_MAX_SCORE"`
	RecencyDecayDays     float64 `yaml:"recency_decay_days" env:"OPTIMIZER_RECENCY_DECAY_DAYS"`
	MaxResultsPerType    int     `yaml:"max_results_per_type" env:"OPTIMIZER_MAX_RESULTS_PER_TYPE"`
	MaxTotalResults      int     `yaml:"max_total_results" env:"OPTIMIZER_MAX_TOTAL_RESULTS"`
	MaxDescriptionLength int     `yaml:"max_description_length" env:"OPTIMIZER_MAX_DESCRIPTION_LENGTH"`
	HighlightTagOpen     string  `yaml:"highlight_tag_open" env:"OPTIMIZER_HIGHLIGHT_TAG_OPEN"`
	HighlightTagClose    string  `yaml:"highlight_tag_close" env:"OPTIMIZER_HIGHLIGHT_TAG_CLOSE"`
	MaxFragments         int     `yaml:"max_fragments" env:"OPTIMIZER_MAX_FRAGMENTS"`
	FragmentSize         int     `yaml:"fragment_size" env:"OPTIMIZER_FRAGMENT_SIZE"`
	ResultsPerPage       int     `yaml:"results_per_page" env:"OPTIMIZER_RESULTS_PER_PAGE"`
	CompressionThreshold int     `yaml:"compression_threshold" env:"OPTIMIZER_COMPRESSION_THRESHOLD"`
	MaxBatchSize         int     `yaml:"max_batch_size" env:"OPTIMIZER_MAX_BATCH_SIZE"`
	StreamChunkSize      int     `yaml:"stream_chunk_size" env:"OPTIMIZER_STREAM_CHUNK_SIZE"`
}

// MCPServerConfig configures which capabilities/tools the session core
// advertises.
type MCPServerConfig struct {
	ReadOnly        bool   `yaml:"read_only" env:"MCP_READ_ONLY"`
	EnabledToolsets string `yaml:"enabled_toolsets" env:"MCP_ENABLED_TOOLSETS"`
	EnabledTools    string `yaml:"enabled_tools" env:"MCP_ENABLED_TOOLS"`
}

// Config is the full configuration an embedder populates and hands to the
// core at startup. It is immutable once constructed.
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	MCP       MCPServerConfig `yaml:"mcp"`

	// ServerName/ServerVendor/ServerVersion identify this server during the
	// initialize handshake.
	ServerName    string `yaml:"server_name" env:"SERVER_NAME"`
	ServerVendor  string `yaml:"server_vendor" env:"SERVER_VENDOR"`
	ServerVersion string `yaml:"server_version" env:"SERVER_VERSION"`

	// ServerPort is the HTTP port the WebSocket listener binds to.
	ServerPort string `yaml:"server_port" env:"SERVER_PORT"`
	// AllowedOrigins is the set of origins permitted by CORS on the
	// WebSocket endpoint. Only configurable via the YAML file, since the
	// environment-variable loader only recognizes scalar fields.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Validate checks the full configuration tree.
func (c *Config) Validate() error {
	if err := c.Upstream.Validate(); err != nil {
		return err
	}
	if c.Search.MaxLimit <= 0 || c.Search.MaxLimit > 100 {
		return errors.New(errors.EValidation, "search.maxLimit must be in (0,100]")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return errors.New(errors.EValidation, "search.defaultLimit must be in (0,maxLimit]")
	}
	if c.Cache.MaxSize < 0 {
		return errors.New(errors.EValidation, "cache.maxSize cannot be negative")
	}
	if c.ServerName == "" {
		return errors.New(errors.EValidation, "serverName cannot be empty")
	}
	return nil
}

// Default returns a Config populated with reasonable defaults for the
// upstream client, cache, optimizer, and search engine.
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			Timeout:            30 * time.Second,
			MaxRetries:         3,
			RetryBaseDelay:     200 * time.Millisecond,
			RateLimitPerHour:   1500,
			ConcurrentRequests: 10,
			AuthType:           AuthTypeAPIKey,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			Timeout:      30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:        true,
			TTL:            300 * time.Second,
			MaxSize:        100,
			MinAccessCount: 2,
			EvictionSlack:  10,
		},
		Optimizer: OptimizerConfig{
			TitleWeight:          2,
			DescriptionWeight:    1,
			IdentifierWeight:     1.5,
			RecencyWeight:        1,
			ExactBoost:           1.5,
			PartialBoost:         1.2,
			MinScore:             0.1,
			MaxScore:             1.0,
			RecencyDecayDays:     30,
			MaxResultsPerType:    20,
			MaxTotalResults:      50,
			MaxDescriptionLength: 280,
			HighlightTagOpen:     "<mark>",
			HighlightTagClose:    "</mark>",
			MaxFragments:         3,
			FragmentSize:         80,
			ResultsPerPage:       20,
			CompressionThreshold: 10 * 1024,
			MaxBatchSize:         20,
			StreamChunkSize:      10,
		},
		ServerName:     "mediation-server",
		ServerVendor:   "pmbridge",
		ServerVersion:  "0.1.0",
		ServerPort:     "8090",
		AllowedOrigins: []string{"*"},
	}
}
