// Package directory resolves entity display metadata and group membership
// from an external, rate-limited directory service.
//
// Lookups go through a TTL cache, a client-side token bucket and a bounded
// retry loop with capped exponential backoff that always honours the
// service's retry-after hint. Entities the directory reports as gone are
// handed to a cleanup hook.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/standings/internal/clock"
	"github.com/dyluth/standings/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DisplayInfo is what the directory knows about an entity.
// GroupID is empty when the entity belongs to no group.
type DisplayInfo struct {
	EntityID    string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
}

// Source is the external directory boundary.
// Implementations return ErrNotFound for entities that no longer exist and
// *RateLimitedError when throttled. Any other error is treated as transient.
type Source interface {
	Resolve(ctx context.Context, entityID string) (DisplayInfo, error)
}

// CleanupFunc removes local state for an entity the directory reports gone.
type CleanupFunc func(ctx context.Context, entityID string) error

// Options configures a Client. Zero fields take the defaults below.
type Options struct {
	TTL            time.Duration // Default 120s
	MaxRetries     int           // Retries after the first attempt. Default 5
	InitialBackoff time.Duration // Default 500ms
	MaxBackoff     time.Duration // Default 30s
	RatePerSecond  float64       // Default 5; rate.Inf disables pacing
	Burst          int           // Default 5
	Concurrency    int           // ResolveMany fan-out. Default 4
	Clock          clock.Clock   // Default clock.Real()
	OnNotFound     CleanupFunc
}

func (o *Options) applyDefaults() {
	if o.TTL <= 0 {
		o.TTL = 120 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = 5
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = 30 * time.Second
	}
	if o.RatePerSecond == 0 {
		o.RatePerSecond = 5
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
}

type cacheEntry struct {
	info      DisplayInfo
	fetchedAt time.Time
}

// Client is a cached, rate-limited, retrying view of a Source.
// Safe for concurrent use.
type Client struct {
	source  Source
	opts    Options
	limiter *rate.Limiter

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewClient wraps source with caching, pacing and retries.
func NewClient(source Source, opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		source:  source,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		cache:   make(map[string]cacheEntry),
	}
}

// Resolve returns the entity's display info.
//
// Returns an error wrapping ErrNotFound if the directory reports the entity
// gone (after running the cleanup hook), ErrUnresolved if the retry budget was
// exhausted, or the context's error if ctx ended first.
func (c *Client) Resolve(ctx context.Context, entityID string) (DisplayInfo, error) {
	if info, ok := c.cached(entityID); ok {
		metrics.DirectoryLookup("hit")
		return info, nil
	}

	bo := c.newBackOff()
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return DisplayInfo{}, fmt.Errorf("failed to wait for directory rate limiter: %w", err)
		}

		info, err := c.source.Resolve(ctx, entityID)
		if err == nil {
			if info.EntityID == "" {
				info.EntityID = entityID
			}
			c.store(entityID, info)
			metrics.DirectoryLookup("found")
			return info, nil
		}

		if errors.Is(err, ErrNotFound) {
			metrics.DirectoryLookup("not_found")
			c.Evict(entityID)
			c.cleanup(ctx, entityID)
			return DisplayInfo{}, fmt.Errorf("%w: %s", ErrNotFound, entityID)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return DisplayInfo{}, ctxErr
		}

		lastErr = err
		if attempt == c.opts.MaxRetries {
			break
		}

		wait := bo.NextBackOff()
		var rl *RateLimitedError
		if errors.As(err, &rl) {
			metrics.DirectoryLookup("rate_limited")
			if rl.RetryAfter > wait {
				wait = rl.RetryAfter
			}
		} else {
			metrics.DirectoryLookup("error")
		}

		metrics.DirectoryBackoff(wait)
		if err := c.sleep(ctx, wait); err != nil {
			return DisplayInfo{}, err
		}
	}

	metrics.DirectoryLookup("unresolved")
	log.Printf("[Directory] Giving up on %s after %d attempts: %v", entityID, c.opts.MaxRetries+1, lastErr)
	return DisplayInfo{}, fmt.Errorf("%w: %s: %v", ErrUnresolved, entityID, lastErr)
}

// Result is the outcome of one entity in ResolveMany.
type Result struct {
	Info DisplayInfo
	Err  error
}

// ResolveMany resolves every id with bounded concurrency. A slow or throttled
// entity only occupies its own slot; the others proceed. Per-entity failures
// are reported in the map and never fail the batch. The returned error is
// non-nil only if ctx ended.
func (c *Client) ResolveMany(ctx context.Context, entityIDs []string) (map[string]Result, error) {
	results := make(map[string]Result, len(entityIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	seen := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			info, err := c.Resolve(gctx, id)
			mu.Lock()
			results[id] = Result{Info: info, Err: err}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Evict drops an entity from the cache.
func (c *Client) Evict(entityID string) {
	c.mu.Lock()
	delete(c.cache, entityID)
	c.mu.Unlock()
}

// CacheSize returns the number of cached entries, fresh or not.
func (c *Client) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Client) cached(entityID string) (DisplayInfo, bool) {
	c.mu.RLock()
	entry, ok := c.cache[entityID]
	c.mu.RUnlock()
	if !ok {
		return DisplayInfo{}, false
	}
	if c.opts.Clock.Now().Sub(entry.fetchedAt) >= c.opts.TTL {
		return DisplayInfo{}, false
	}
	return entry.info, true
}

func (c *Client) store(entityID string, info DisplayInfo) {
	c.mu.Lock()
	c.cache[entityID] = cacheEntry{info: info, fetchedAt: c.opts.Clock.Now()}
	c.mu.Unlock()
}

func (c *Client) cleanup(ctx context.Context, entityID string) {
	if c.opts.OnNotFound == nil {
		return
	}
	if err := c.opts.OnNotFound(ctx, entityID); err != nil {
		// Cleanup runs again the next time the entity is looked up.
		log.Printf("[Directory] Failed to clean up vanished entity %s: %v", entityID, err)
		return
	}
	log.Printf("[Directory] Removed vanished entity %s", entityID)
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialBackoff
	bo.MaxInterval = c.opts.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := c.opts.Clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
