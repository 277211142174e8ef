// Package upstream implements the GraphQL client that mediates between the
// JSON-RPC session core and the upstream project-management API: request
// execution, cursor pagination, concurrency bounding, rate-limit tracking,
// and retry with backoff.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/semaphore"

	"github.com/pmbridge/mediation-server/internal/audit"
	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

// Request is a single GraphQL operation.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GQLError is one entry in a GraphQL response's errors array.
type GQLError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GQLError      `json:"errors,omitempty"`
}

// rateLimitSleepThreshold is the cutoff below which Execute sleeps out a
// rate-limit reset instead of failing fast.
const rateLimitSleepThreshold = 60 * time.Second

// RateLimitState is the client's view of the upstream's rate limit, updated
// from response headers on every call.
type RateLimitState struct {
	Remaining int
	ResetAt   time.Time
}

// Client executes GraphQL requests against the upstream API.
type Client struct {
	cfg        config.UpstreamConfig
	httpClient *http.Client
	sem        *semaphore.Weighted
	log        logger.Logger
	auditSink  audit.Sink

	mu        sync.Mutex
	rateLimit RateLimitState
}

// NewClient builds a Client from the given upstream configuration. It
// reports to a no-op audit sink until SetAuditSink is called.
func NewClient(cfg config.UpstreamConfig, log logger.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sem:        semaphore.NewWeighted(int64(cfg.ConcurrentRequests)),
		log:        log,
		auditSink:  audit.NoopSink{},
		rateLimit:  RateLimitState{Remaining: cfg.RateLimitPerHour},
	}
}

// SetAuditSink replaces the client's audit sink.
func (c *Client) SetAuditSink(sink audit.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auditSink = sink
}

// RateLimit returns a snapshot of the current rate-limit state.
func (c *Client) RateLimit() RateLimitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit
}

// Execute runs a single GraphQL request and decodes its data field into out.
// Concurrency is bounded by ConcurrentRequests; transport failures and 5xx
// responses are retried with exponential backoff and full jitter.
func (c *Client) Execute(ctx context.Context, req Request, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, errors.ECancelled, "waiting for upstream request slot")
	}
	defer c.sem.Release(1)

	if rl := c.RateLimit(); rl.Remaining <= 0 && time.Now().Before(rl.ResetAt) {
		wait := time.Until(rl.ResetAt)
		if wait > rateLimitSleepThreshold {
			return errors.New(errors.ERateLimited, "upstream rate limit exhausted, resets at %s", rl.ResetAt.Format(time.RFC3339))
		}
		if c.log != nil {
			c.log.Warnw("upstream rate limit exhausted, sleeping until reset", "wait", wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			if errors.IsContextDeadlineExceededError(ctx.Err()) {
				return errors.Wrap(ctx.Err(), errors.ETimeout, "waiting for upstream rate limit reset")
			}
			return errors.Wrap(ctx.Err(), errors.ECancelled, "waiting for upstream rate limit reset")
		}
	}

	c.mu.Lock()
	if c.rateLimit.Remaining <= 0 && !c.rateLimit.ResetAt.IsZero() && !time.Now().Before(c.rateLimit.ResetAt) {
		c.rateLimit.Remaining = c.cfg.RateLimitPerHour
	}
	c.mu.Unlock()

	var raw json.RawMessage
	err := retry.Do(
		func() error {
			data, execErr := c.doRequest(ctx, req)
			if execErr != nil {
				return execErr
			}
			raw = data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries+1)),
		retry.DelayType(fullJitterBackoff(c.cfg.RetryBaseDelay)),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if c.log != nil {
				c.log.Warnw("retrying upstream request", "attempt", n+1, "error", err)
			}
		}),
	)
	if err != nil {
		if !isRetryable(err) {
			c.auditSink.Record(audit.Event{
				EventType: "upstream.error",
				Severity:  audit.SeverityCritical,
				Resource:  req.Query,
				Action:    "execute",
				Timestamp: time.Now(),
				Details:   map[string]any{"error": err.Error(), "code": errors.Code(err)},
			})
		}
		return err
	}
	if out == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.EUpstream, "failed to decode upstream response")
	}
	return nil
}

// fullJitterBackoff returns a retry.DelayTypeFunc implementing full-jitter
// exponential backoff: delay = random(0, base * 2^attempt).
func fullJitterBackoff(base time.Duration) retry.DelayTypeFunc {
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		maxDelay := base * (1 << n)
		if maxDelay <= 0 {
			maxDelay = base
		}
		return time.Duration(rand.Int63n(int64(maxDelay) + 1))
	}
}

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

// retryableError marks transport/5xx failures as eligible for retry,
// distinct from 4xx/validation/GraphQL-level errors which are not. Unwrap
// exposes the wrapped MediationError so pmerrors.Code/Message still see
// through it once retries are exhausted.
type retryableError struct{ error }

func (e *retryableError) Unwrap() error { return e.error }

func (c *Client) doRequest(ctx context.Context, req Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.EValidation, "failed to encode GraphQL request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.EInternal, "failed to build upstream request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.authHeader())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.IsContextCanceledError(err) {
			return nil, errors.Wrap(err, errors.ECancelled, "upstream request cancelled")
		}
		if errors.IsContextDeadlineExceededError(err) {
			return nil, &retryableError{errors.Wrap(err, errors.ETimeout, "upstream request timed out")}
		}
		return nil, &retryableError{errors.Wrap(err, errors.EUpstream, "upstream request failed")}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{errors.Wrap(err, errors.EUpstream, "failed to read upstream response")}
	}

	c.updateRateLimit(resp.Header)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.New(errors.EUnauthorized, "upstream rejected credentials")
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.ENotFound, "upstream resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{errors.New(errors.ERateLimited, "upstream rate limited this request")}
	case resp.StatusCode >= 500:
		return nil, &retryableError{errors.New(errors.EUpstream, "upstream returned status %d: %s", resp.StatusCode, string(respBody))}
	case resp.StatusCode >= 400:
		return nil, errors.New(errors.EUpstream, "upstream returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp gqlResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, errors.Wrap(err, errors.EUpstream, "failed to parse upstream response")
	}
	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, len(gqlResp.Errors))
		for i, e := range gqlResp.Errors {
			msgs[i] = e.Message
		}
		return nil, errors.New(errors.EUpstream, "upstream GraphQL errors: %s", strings.Join(msgs, "; "))
	}

	return gqlResp.Data, nil
}

func (c *Client) authHeader() string {
	switch c.cfg.AuthType {
	case config.AuthTypeOAuth:
		return "Bearer " + c.cfg.OAuthToken
	default:
		return c.cfg.APIKey
	}
}

func (c *Client) updateRateLimit(h http.Header) {
	remaining := h.Get("X-RateLimit-Remaining")
	resetAt := h.Get("X-RateLimit-Reset")
	if remaining == "" && resetAt == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n, err := strconv.Atoi(remaining); err == nil {
		c.rateLimit.Remaining = n
	}
	if secs, err := strconv.ParseInt(resetAt, 10, 64); err == nil {
		c.rateLimit.ResetAt = time.Unix(secs, 0)
	}
}
