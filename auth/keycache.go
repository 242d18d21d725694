package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolgate/health"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/resilience"
)

// Key cache defaults.
const (
	DefaultKeySetTTL          = time.Hour
	DefaultGracePeriod        = 24 * time.Hour
	DefaultFetchTimeout       = 10 * time.Second
	DefaultMinRefreshInterval = 30 * time.Second
	DefaultFetchMaxFailures   = 5
	DefaultFetchAttempts      = 2
)

// maxKeySetBytes bounds the size of a fetched key-set document.
const maxKeySetBytes = 1 << 20

// KeyCacheSettings are the tunables shared by every issuer's cache.
type KeyCacheSettings struct {
	// TTL is how long a fetched key set is fresh. Default: 1h.
	TTL time.Duration `mapstructure:"ttl"`

	// GracePeriod is how long past TTL a stale key set keeps serving when
	// refreshes fail. Default: 24h.
	GracePeriod time.Duration `mapstructure:"grace_period"`

	// FetchTimeout bounds one refresh, including retries. Default: 10s.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// MinRefreshInterval limits refreshes triggered by unknown key ids and
	// spaces retries of failed background refreshes. Default: 30s.
	MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`

	// MaxFailures is the number of consecutive failed fetches that opens
	// the circuit to the endpoint. Default: 5.
	MaxFailures int `mapstructure:"max_failures"`

	// FetchAttempts is the number of attempts per refresh. Default: 2.
	FetchAttempts int `mapstructure:"fetch_attempts"`
}

func (s KeyCacheSettings) withDefaults() KeyCacheSettings {
	if s.TTL <= 0 {
		s.TTL = DefaultKeySetTTL
	}
	if s.GracePeriod < 0 {
		s.GracePeriod = 0
	} else if s.GracePeriod == 0 {
		s.GracePeriod = DefaultGracePeriod
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = DefaultFetchTimeout
	}
	if s.MinRefreshInterval <= 0 {
		s.MinRefreshInterval = DefaultMinRefreshInterval
	}
	if s.MaxFailures <= 0 {
		s.MaxFailures = DefaultFetchMaxFailures
	}
	if s.FetchAttempts <= 0 {
		s.FetchAttempts = DefaultFetchAttempts
	}
	return s
}

// KeyCacheConfig configures the key cache of one issuer.
type KeyCacheConfig struct {
	KeyCacheSettings `mapstructure:",squash"`

	// Issuer owns the key set.
	Issuer string `mapstructure:"issuer"`

	// JWKSURL is the key-set endpoint. When empty it is discovered from
	// the issuer on first fetch.
	JWKSURL string `mapstructure:"jwks_url"`
}

// KeyCache holds the signing keys of one issuer.
//
// Readers always see a complete snapshot. A refresh never blocks readers
// of a fresh snapshot, concurrent refreshes share one fetch, and a failed
// fetch never replaces a snapshot. When fetches fail the last snapshot
// keeps serving until TTL+GracePeriod, and the cache reports degraded.
//
// KeyCache implements health.Checker.
type KeyCache struct {
	cfg      KeyCacheConfig
	client   *http.Client
	executor *resilience.Executor
	limiter  *resilience.RateLimiter
	logger   observe.Logger
	metrics  observe.AuthMetrics
	now      func() time.Time

	group    singleflight.Group
	snapshot atomic.Pointer[KeySetSnapshot]
	jwksURL  atomic.Pointer[string]
	degraded atomic.Bool

	mu      sync.Mutex
	lastErr error
}

var _ health.Checker = (*KeyCache)(nil)

// NewKeyCache creates a key cache. It fetches nothing until first use or
// Warm.
func NewKeyCache(cfg KeyCacheConfig, opts ...Option) *KeyCache {
	o := newOptions(opts)
	cfg.KeyCacheSettings = cfg.KeyCacheSettings.withDefaults()

	c := &KeyCache{
		cfg:     cfg,
		client:  o.httpClient,
		logger:  o.logger.With(observe.F("issuer", cfg.Issuer)),
		metrics: o.metrics,
		now:     o.now,
	}
	if cfg.JWKSURL != "" {
		u := cfg.JWKSURL
		c.jwksURL.Store(&u)
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.MinRefreshInterval,
		Now:          o.now,
		OnStateChange: func(from, to resilience.State) {
			c.logger.Warn(context.Background(), "key set circuit changed state",
				observe.F("from", from.String()),
				observe.F("to", to.String()))
		},
	})
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: cfg.FetchAttempts,
		Jitter:      true,
	})
	c.executor = resilience.NewExecutor(
		resilience.WithCircuitBreaker(breaker),
		resilience.WithRetry(retry),
		resilience.WithTimeout(cfg.FetchTimeout/time.Duration(cfg.FetchAttempts)),
	)

	limiterCfg := resilience.EveryInterval(cfg.MinRefreshInterval)
	limiterCfg.Now = o.now
	c.limiter = resilience.NewRateLimiter(limiterCfg)
	return c
}

// Issuer returns the issuer whose keys are cached.
func (c *KeyCache) Issuer() string { return c.cfg.Issuer }

// Snapshot returns the current snapshot, or nil before the first
// successful fetch.
func (c *KeyCache) Snapshot() *KeySetSnapshot { return c.snapshot.Load() }

// Degraded reports whether the last lookup was served from a stale
// snapshot because refreshing failed.
func (c *KeyCache) Degraded() bool { return c.degraded.Load() }

// GetKey returns the key with id kid.
//
// A fresh snapshot that lacks kid triggers at most one refresh per
// MinRefreshInterval. When the endpoint is unreachable a stale snapshot is
// used until TTL+GracePeriod. Errors wrap ErrKeyNotFound or ErrKeyFetch.
func (c *KeyCache) GetKey(ctx context.Context, kid string) (SigningKey, error) {
	if snap := c.snapshot.Load(); snap != nil && snap.Fresh(c.now()) {
		if key, ok := snap.Lookup(kid); ok {
			return key, nil
		}
		if !c.limiter.Allow() {
			return SigningKey{}, c.notFound(kid)
		}
	}

	res, err := c.load(ctx)
	if err != nil {
		return SigningKey{}, err
	}
	if key, ok := res.snap.Lookup(kid); ok {
		return key, nil
	}
	if res.fetchErr != nil {
		return SigningKey{}, fmt.Errorf("%w: %s: key %q absent and refresh failed: %w", ErrKeyFetch, c.cfg.Issuer, kid, res.fetchErr)
	}
	return SigningKey{}, c.notFound(kid)
}

func (c *KeyCache) notFound(kid string) error {
	return fmt.Errorf("%w: %s: key %q", ErrKeyNotFound, c.cfg.Issuer, kid)
}

// Warm fetches the key set once.
func (c *KeyCache) Warm(ctx context.Context) error {
	res, err := c.load(ctx)
	if err != nil {
		return err
	}
	return res.fetchErr
}

// Run refreshes the key set shortly before each snapshot expires, and
// every MinRefreshInterval while refreshes fail. It returns when ctx is
// done.
func (c *KeyCache) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(c.nextRefresh())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if err := c.Warm(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn(ctx, "background key set refresh failed", observe.F("error", err))
		}
	}
}

func (c *KeyCache) nextRefresh() time.Duration {
	if c.lastError() != nil {
		return c.cfg.MinRefreshInterval
	}
	snap := c.snapshot.Load()
	if snap == nil {
		return 0
	}
	lead := snap.TTL / 10
	return max(snap.ExpiresAt().Add(-lead).Sub(c.now()), 0)
}

// loaded is the result of a refresh. fetchErr is set when snap is an
// older snapshot served because the fetch failed.
type loaded struct {
	snap     *KeySetSnapshot
	fetchErr error
}

// load refreshes the key set, falling back to a snapshot within its grace
// period. Callers give up when ctx is done; the fetch itself continues on
// a detached context and still updates the cache.
func (c *KeyCache) load(ctx context.Context) (loaded, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		return c.refresh(fctx)
	})

	select {
	case <-ctx.Done():
		return loaded{}, fmt.Errorf("%w: %s: %w", ErrKeyFetch, c.cfg.Issuer, ctx.Err())
	case res := <-ch:
		if res.Err == nil {
			return loaded{snap: res.Val.(*KeySetSnapshot)}, nil
		}
		return c.fallback(ctx, res.Err)
	}
}

func (c *KeyCache) fallback(ctx context.Context, fetchErr error) (loaded, error) {
	now := c.now()
	prior := c.snapshot.Load()
	if prior == nil || !now.Before(prior.ExpiresAt().Add(c.cfg.GracePeriod)) {
		return loaded{}, fmt.Errorf("%w: %s: %w", ErrKeyFetch, c.cfg.Issuer, fetchErr)
	}
	if !prior.Fresh(now) {
		c.metrics.RecordDegraded(ctx, c.cfg.Issuer)
		if c.degraded.CompareAndSwap(false, true) {
			c.logger.Warn(ctx, "serving stale key set",
				observe.F("age", prior.Age(now).String()),
				observe.F("error", fetchErr))
		}
	}
	return loaded{snap: prior, fetchErr: fetchErr}, nil
}

func (c *KeyCache) refresh(ctx context.Context) (*KeySetSnapshot, error) {
	keys, err := resilience.Do(ctx, c.executor, c.fetch)
	if err != nil {
		c.setLastError(err)
		c.metrics.RecordKeySetFetch(ctx, c.cfg.Issuer, "error")
		return nil, err
	}

	snap := NewKeySetSnapshot(c.cfg.Issuer, keys, c.now(), c.cfg.TTL)
	c.snapshot.Store(snap)
	c.setLastError(nil)
	c.metrics.RecordKeySetFetch(ctx, c.cfg.Issuer, "success")
	if c.degraded.Swap(false) {
		c.logger.Info(ctx, "key set recovered", observe.F("keys", snap.Len()))
	} else {
		c.logger.Debug(ctx, "key set refreshed", observe.F("keys", snap.Len()))
	}
	return snap, nil
}

func (c *KeyCache) fetch(ctx context.Context) ([]SigningKey, error) {
	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if len(body) > maxKeySetBytes {
		return nil, fmt.Errorf("fetch %s: key set exceeds %d bytes", endpoint, maxKeySetBytes)
	}

	keys, err := ParseKeySet(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, errEmptyKeySet)
	}
	return keys, nil
}

func (c *KeyCache) endpoint(ctx context.Context) (string, error) {
	if u := c.jwksURL.Load(); u != nil {
		return *u, nil
	}
	u, err := DiscoverJWKSURL(ctx, c.client, c.cfg.Issuer)
	if err != nil {
		return "", err
	}
	c.jwksURL.Store(&u)
	c.logger.Info(ctx, "discovered key set endpoint", observe.F("jwks_url", u))
	return u, nil
}

func (c *KeyCache) lastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *KeyCache) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Name returns the health check name, "keyset:" followed by the issuer
// host and path.
func (c *KeyCache) Name() string {
	name := c.cfg.Issuer
	if u, err := url.Parse(c.cfg.Issuer); err == nil && u.Host != "" {
		name = u.Host + u.Path
	}
	return "keyset:" + strings.TrimSuffix(name, "/")
}

// Check reports healthy while the snapshot is fresh, degraded while a
// stale snapshot is within its grace period, and unhealthy otherwise. It
// never fetches.
func (c *KeyCache) Check(_ context.Context) health.Result {
	now := c.now()
	snap := c.snapshot.Load()
	lastErr := c.lastError()

	details := map[string]any{"issuer": c.cfg.Issuer}
	if u := c.jwksURL.Load(); u != nil {
		details["jwks_url"] = *u
	}
	if cb := c.executor.CircuitBreaker(); cb != nil {
		details["circuit"] = cb.State().String()
	}

	var result health.Result
	switch {
	case snap == nil:
		if lastErr == nil {
			lastErr = errors.New("key set not fetched yet")
		}
		result = health.Unhealthy("no key set", lastErr)
	case snap.Fresh(now):
		result = health.Healthy("key set fresh")
	case now.Before(snap.ExpiresAt().Add(c.cfg.GracePeriod)):
		result = health.Degraded("serving stale key set").WithError(lastErr)
	default:
		result = health.Unhealthy("key set expired beyond grace period", lastErr)
	}
	if snap != nil {
		details["keys"] = snap.Len()
		details["fetched_at"] = snap.FetchedAt.UTC().Format(time.RFC3339)
		details["age"] = snap.Age(now).Round(time.Second).String()
	}
	return result.WithDetails(details).At(now)
}
