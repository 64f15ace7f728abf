// Package display keeps the published ranking artifact in step with the
// score store. A new artifact is rendered and published only when the
// ranking's fingerprint changes, and concurrent triggers share one
// regeneration.
package display

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/dyluth/standings/internal/clock"
	"github.com/dyluth/standings/internal/directory"
	"github.com/dyluth/standings/internal/metrics"
	"github.com/dyluth/standings/internal/ranking"
	"github.com/dyluth/standings/pkg/scoreboard"
	"golang.org/x/sync/singleflight"
)

// Publisher posts and removes artifacts on a display channel.
// *scoreboard.Client implements it by storing the payload and announcing it
// on the artifact events channel.
type Publisher interface {
	PublishArtifact(ctx context.Context, channel string, payload []byte) (string, error)
	UnpublishArtifact(ctx context.Context, channel, ref string) error
}

// PointerStore persists which artifact is current on a channel.
type PointerStore interface {
	GetCurrentArtifact(ctx context.Context, channel string) (*scoreboard.ArtifactPointer, error)
	SetCurrentArtifact(ctx context.Context, p *scoreboard.ArtifactPointer) error
}

// Resolver enriches entity ids with display metadata.
type Resolver interface {
	ResolveMany(ctx context.Context, entityIDs []string) (map[string]directory.Result, error)
}

// Outcome describes what MaybeRegenerate did.
type Outcome string

const (
	// Unchanged means the fingerprint matched the published artifact.
	Unchanged Outcome = "unchanged"

	// Published means a new artifact replaced the previous one.
	Published Outcome = "published"
)

// Cache owns the current artifact of one display channel.
type Cache struct {
	channel   string
	resolver  Resolver
	renderer  Renderer
	publisher Publisher
	pointers  PointerStore
	clock     clock.Clock

	flight singleflight.Group

	mu      sync.Mutex
	loaded  bool
	current *scoreboard.ArtifactPointer

	regenerations atomic.Int64
}

// Config wires a Cache.
type Config struct {
	Channel   string
	Resolver  Resolver
	Renderer  Renderer // Default TableRenderer
	Publisher Publisher
	Pointers  PointerStore
	Clock     clock.Clock // Default clock.Real()
}

// NewCache creates a Cache for one display channel.
func NewCache(cfg Config) (*Cache, error) {
	if cfg.Channel == "" {
		return nil, fmt.Errorf("channel cannot be empty")
	}
	if cfg.Resolver == nil || cfg.Publisher == nil || cfg.Pointers == nil {
		return nil, fmt.Errorf("resolver, publisher and pointer store are required")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = TableRenderer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Cache{
		channel:   cfg.Channel,
		resolver:  cfg.Resolver,
		renderer:  cfg.Renderer,
		publisher: cfg.Publisher,
		pointers:  cfg.Pointers,
		clock:     cfg.Clock,
	}, nil
}

// MaybeRegenerate publishes a new artifact for snap unless the current
// artifact already shows the same ranking.
//
// Concurrent calls coalesce into the regeneration already running; they
// receive its outcome. On failure the previous artifact stays current and
// the next call retries.
func (c *Cache) MaybeRegenerate(ctx context.Context, snap *ranking.Snapshot) (Outcome, error) {
	current, err := c.loadCurrent(ctx)
	if err != nil {
		return "", err
	}
	if current != nil && current.Fingerprint == snap.Fingerprint {
		metrics.Regeneration(c.channel, "skipped")
		return Unchanged, nil
	}

	v, err, _ := c.flight.Do(c.channel, func() (interface{}, error) {
		return c.regenerate(ctx, snap)
	})
	if err != nil {
		metrics.Regeneration(c.channel, "error")
		return "", err
	}
	return v.(Outcome), nil
}

// Regenerations returns the number of artifacts published by this cache.
func (c *Cache) Regenerations() int64 {
	return c.regenerations.Load()
}

// Current returns a copy of the current artifact pointer, or nil.
func (c *Cache) Current() *scoreboard.ArtifactPointer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	p := *c.current
	return &p
}

func (c *Cache) loadCurrent(ctx context.Context) (*scoreboard.ArtifactPointer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.current, nil
	}

	p, err := c.pointers.GetCurrentArtifact(ctx, c.channel)
	if err != nil && !scoreboard.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load current artifact: %w", err)
	}
	c.current = p
	c.loaded = true
	return c.current, nil
}

func (c *Cache) regenerate(ctx context.Context, snap *ranking.Snapshot) (Outcome, error) {
	previous := c.Current()
	// A regeneration that finished while this one waited may already match.
	if previous != nil && previous.Fingerprint == snap.Fingerprint {
		return Unchanged, nil
	}

	rows, err := c.enrich(ctx, snap)
	if err != nil {
		return "", err
	}

	payload, err := c.renderer.Render(rows)
	if err != nil {
		return "", fmt.Errorf("failed to render artifact for %s: %w", c.channel, err)
	}

	ref, err := c.publisher.PublishArtifact(ctx, c.channel, payload)
	if err != nil {
		return "", fmt.Errorf("failed to publish artifact for %s: %w", c.channel, err)
	}

	next := &scoreboard.ArtifactPointer{
		Channel:      c.channel,
		Fingerprint:  snap.Fingerprint,
		PayloadRef:   ref,
		PublishedRef: ref,
		PublishedAt:  c.clock.Now(),
	}
	if err := c.pointers.SetCurrentArtifact(ctx, next); err != nil {
		// Without a persisted pointer the new artifact would be orphaned on
		// restart; take it back down and keep the old one current.
		if uerr := c.publisher.UnpublishArtifact(ctx, c.channel, ref); uerr != nil {
			log.Printf("[Display] Failed to withdraw unrecorded artifact %s on %s: %v", ref, c.channel, uerr)
		}
		return "", fmt.Errorf("failed to record current artifact for %s: %w", c.channel, err)
	}

	c.mu.Lock()
	c.current = next
	c.mu.Unlock()
	c.regenerations.Add(1)
	metrics.Regeneration(c.channel, "published")

	if previous != nil && previous.PublishedRef != "" {
		if err := c.publisher.UnpublishArtifact(ctx, c.channel, previous.PublishedRef); err != nil {
			log.Printf("[Display] Failed to retire previous artifact %s on %s: %v", previous.PublishedRef, c.channel, err)
		}
	}

	log.Printf("[Display] Published ranking on %s (%d entries, fingerprint %.12s)", c.channel, len(rows), snap.Fingerprint)
	return Published, nil
}

// enrich resolves display names. Entities the directory no longer knows are
// dropped; entities that could not be resolved this time show their id.
func (c *Cache) enrich(ctx context.Context, snap *ranking.Snapshot) ([]Row, error) {
	results, err := c.resolver.ResolveMany(ctx, snap.EntityIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ranking entries: %w", err)
	}

	rows := make([]Row, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		res := results[e.EntityID]
		if directory.IsNotFound(res.Err) {
			continue
		}
		name := res.Info.DisplayName
		if res.Err != nil || name == "" {
			name = e.EntityID
		}
		rows = append(rows, Row{
			Rank:        len(rows) + 1,
			EntityID:    e.EntityID,
			DisplayName: name,
			AvatarURL:   res.Info.AvatarURL,
			Score:       e.Score,
		})
	}
	return rows, nil
}
