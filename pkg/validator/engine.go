// Package validator confirms whether found keys are still live by asking
// the issuing provider's own read-only endpoint, and nothing else. Keys
// never travel anywhere except to their issuer, calls never mutate
// provider state, and raw key material never reaches a log line.
package validator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/keywarden/keywarden/pkg/types"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultWorkers    = 4
	defaultVerdictTTL = time.Hour

	// maxRetryAfter caps the provider's Retry-After hint so one hostile
	// or misconfigured header cannot stall a run.
	maxRetryAfter = 30 * time.Second
)

// Engine validates findings provider by provider: one dispatch group per
// provider, a bounded worker semaphore inside each, and a shared
// per-provider rate limiter underneath, so a burst of openai findings
// can never starve or flood anyone.
type Engine struct {
	client   *http.Client
	checks   map[types.Provider]providerCheck
	timeout  time.Duration
	workers  int
	logger   *slog.Logger
	verdicts *ttlcache.Cache[string, *types.ValidationVerdict]

	mu       sync.Mutex
	limiters map[types.Provider]*rate.Limiter
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithWorkersPerProvider bounds concurrent calls within one provider.
func WithWorkersPerProvider(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) { e.client = client }
}

// WithVerdictTTL sets how long a verdict answers for the same key.
func WithVerdictTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.verdicts = ttlcache.New[string, *types.ValidationVerdict](
				ttlcache.WithTTL[string, *types.ValidationVerdict](ttl))
		}
	}
}

// WithEndpoint rewrites one provider's check endpoint. Test hook.
func WithEndpoint(p types.Provider, url string) Option {
	return func(e *Engine) {
		check, ok := e.checks[p]
		if !ok {
			return
		}
		check.endpoint = url
		e.checks[p] = check
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a validation engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		client:  &http.Client{},
		checks:  defaultChecks(),
		timeout: defaultTimeout,
		workers: defaultWorkers,
		logger:  slog.Default(),
		verdicts: ttlcache.New[string, *types.ValidationVerdict](
			ttlcache.WithTTL[string, *types.ValidationVerdict](defaultVerdictTTL)),
		limiters: make(map[types.Provider]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.verdicts.Start()
	return e
}

// Close stops the verdict cache's expiry loop.
func (e *Engine) Close() {
	e.verdicts.Stop()
}

// Validate attaches a verdict to every finding, in place. Each finding
// gets exactly one verdict; a canceled context yields network-error,
// never a silently unvalidated finding.
func (e *Engine) Validate(ctx context.Context, findings []*types.Finding) {
	groups := make(map[types.Provider][]*types.Finding)
	for _, f := range findings {
		if f.Verdict != nil {
			continue
		}
		groups[f.Provider] = append(groups[f.Provider], f)
	}

	var wg sync.WaitGroup
	for provider, group := range groups {
		wg.Add(1)
		go func(p types.Provider, fs []*types.Finding) {
			defer wg.Done()
			e.validateProvider(ctx, p, fs)
		}(provider, group)
	}
	wg.Wait()
}

func (e *Engine) validateProvider(ctx context.Context, p types.Provider, findings []*types.Finding) {
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, f := range findings {
		wg.Add(1)
		sem <- struct{}{}
		go func(f *types.Finding) {
			defer wg.Done()
			defer func() { <-sem }()
			f.Verdict = e.verdict(ctx, p, f.Key)
			e.logger.Debug("validated finding", "finding", f, "status", f.Verdict.Status)
		}(f)
	}
	wg.Wait()
}

// verdict resolves one key: table lookup, local prechecks, verdict
// cache, then at most two network calls (the second only after a 429).
func (e *Engine) verdict(ctx context.Context, p types.Provider, key string) *types.ValidationVerdict {
	check, ok := e.checks[p]
	if !ok || p == types.ProviderGeneric {
		return types.NewVerdict(types.StatusUnsupported, "no safe check for this provider")
	}

	if v := precheck(p, key); v != nil {
		return v
	}

	cacheKey := hashKey(key)
	if item := e.verdicts.Get(cacheKey); item != nil {
		return item.Value()
	}

	limiter := e.limiter(p)
	if err := limiter.Wait(ctx); err != nil {
		return types.NewVerdict(types.StatusNetworkErr, "validation canceled")
	}

	v := e.call(ctx, check, key)
	if v.Status == types.StatusRateLimited {
		v = e.retryAfterLimit(ctx, check, key, v)
	}

	e.verdicts.Set(cacheKey, v, ttlcache.DefaultTTL)
	return v
}

// retryAfterLimit makes the single permitted retry after a 429, waiting
// out the provider's hint or an exponential default.
func (e *Engine) retryAfterLimit(ctx context.Context, check providerCheck, key string, first *types.ValidationVerdict) *types.ValidationVerdict {
	wait := first.RetryAfter
	if wait <= 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		wait = b.NextBackOff()
	}
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}

	select {
	case <-ctx.Done():
		return types.NewVerdict(types.StatusNetworkErr, "validation canceled")
	case <-time.After(wait):
	}

	second := e.call(ctx, check, key)
	if second.Status == types.StatusRateLimited {
		// Still limited after the retry: report the original hint.
		return first
	}
	return second
}

// call makes one GET against the provider and maps the response.
func (e *Engine) call(ctx context.Context, check providerCheck, key string) *types.ValidationVerdict {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, check.endpoint, nil)
	if err != nil {
		return types.NewVerdict(types.StatusNetworkErr, fmt.Sprintf("building request: %v", err))
	}
	check.apply(req, key)

	resp, err := e.client.Do(req)
	if err != nil {
		return types.NewVerdict(types.StatusNetworkErr, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch resp.StatusCode {
	case http.StatusOK:
		if check.requireDataArray && !hasDataArray(body) {
			return types.NewVerdict(types.StatusNetworkErr, "200 without expected response shape")
		}
		return types.NewVerdict(types.StatusValid, "key accepted")
	case http.StatusUnauthorized:
		return types.NewVerdict(types.StatusInvalid, "key rejected")
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(string(body)), "expired") {
			return types.NewVerdict(types.StatusInvalid, "key expired")
		}
		return types.NewVerdict(types.StatusValid, "key recognized, scope-limited")
	case http.StatusTooManyRequests:
		return types.NewRateLimitedVerdict(parseRetryAfter(resp.Header.Get("Retry-After")))
	default:
		return types.NewVerdict(types.StatusNetworkErr, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}

func (e *Engine) limiter(p types.Provider) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[p]
	if !ok {
		perMinute := requestsPerMinute(p)
		l = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
		e.limiters[p] = l
	}
	return l
}

// parseRetryAfter handles both forms of the header: delta seconds and an
// HTTP date. Unparseable or absent hints return zero.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		d := time.Duration(secs) * time.Second
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			if d > maxRetryAfter {
				return maxRetryAfter
			}
			return d
		}
	}
	return 0
}

// hasDataArray reports whether the body is JSON carrying a "data" array.
func hasDataArray(body []byte) bool {
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Data != nil
}

// hashKey derives the verdict-cache key. Raw key material never sits in
// a map key that could surface in diagnostics.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
