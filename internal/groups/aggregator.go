// Package groups maps entities to their competing groups and maintains the
// per-group archived totals.
package groups

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/standings/internal/directory"
	"github.com/dyluth/standings/pkg/scoreboard"
)

// Resolver looks up entity metadata, including group membership.
type Resolver interface {
	ResolveMany(ctx context.Context, entityIDs []string) (map[string]directory.Result, error)
}

// Store is the persistence the aggregator needs.
// *scoreboard.Client implements it.
type Store interface {
	ArchiveToGroup(ctx context.Context, invocationID string, r scoreboard.Receipt) (bool, error)
	GroupTotals(ctx context.Context) ([]scoreboard.GroupTotal, error)
	ClearGroupTotals(ctx context.Context, invocationID string, totals []scoreboard.GroupTotal) (int, error)
}

// Aggregator resolves groups and merges archived scores into group totals.
type Aggregator struct {
	resolver Resolver
	store    Store
}

// NewAggregator creates an Aggregator.
func NewAggregator(resolver Resolver, store Store) *Aggregator {
	return &Aggregator{resolver: resolver, store: store}
}

// Membership is the group resolution of one entity.
// GroupID is empty for entities in no group. Err is non-nil when the entity
// could not be resolved (directory.ErrNotFound or directory.ErrUnresolved).
type Membership struct {
	GroupID string
	Err     error
}

// Cycle memoizes group resolution for the duration of one cycle invocation,
// so each entity is looked up at most once per cycle.
type Cycle struct {
	agg *Aggregator

	mu   sync.Mutex
	memo map[string]Membership
}

// BeginCycle starts a resolution scope for one cycle invocation.
func (a *Aggregator) BeginCycle() *Cycle {
	return &Cycle{agg: a, memo: make(map[string]Membership)}
}

// Resolve returns the membership of every id, consulting the directory only
// for ids this cycle has not seen yet. Transient failures are memoized too;
// the entity is retried by the next cycle, not by this one.
func (c *Cycle) Resolve(ctx context.Context, entityIDs []string) (map[string]Membership, error) {
	c.mu.Lock()
	var missing []string
	for _, id := range entityIDs {
		if _, ok := c.memo[id]; !ok {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()

	if len(missing) > 0 {
		results, err := c.agg.resolver.ResolveMany(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve groups: %w", err)
		}
		c.mu.Lock()
		for _, id := range missing {
			res := results[id]
			c.memo[id] = Membership{GroupID: res.Info.GroupID, Err: res.Err}
		}
		c.mu.Unlock()
	}

	out := make(map[string]Membership, len(entityIDs))
	c.mu.Lock()
	for _, id := range entityIDs {
		out[id] = c.memo[id]
	}
	c.mu.Unlock()
	return out, nil
}

// Archive records an entity's archived amount under an invocation and merges
// it into the entity's group total. Returns false if this invocation already
// archived the entity.
func (a *Aggregator) Archive(ctx context.Context, invocationID string, r scoreboard.Receipt) (bool, error) {
	return a.store.ArchiveToGroup(ctx, invocationID, r)
}

// Totals returns the current group totals, highest first.
func (a *Aggregator) Totals(ctx context.Context) ([]scoreboard.GroupTotal, error) {
	return a.store.GroupTotals(ctx)
}

// Clear subtracts exactly the given totals, once per invocation.
func (a *Aggregator) Clear(ctx context.Context, invocationID string, totals []scoreboard.GroupTotal) (int, error) {
	return a.store.ClearGroupTotals(ctx, invocationID, totals)
}

// Compare builds the comparison announced by the group cycle. The winner is
// the group with the highest total; Tie is set when two or more groups share
// it. Groups with a zero total never win.
func Compare(invocationID string, totals []scoreboard.GroupTotal, at time.Time) *scoreboard.GroupComparison {
	sorted := make([]scoreboard.GroupTotal, len(totals))
	copy(sorted, totals)
	scoreboard.SortGroupTotals(sorted)

	cmp := &scoreboard.GroupComparison{
		InvocationID: invocationID,
		Totals:       sorted,
		AnnouncedAt:  at,
	}
	if len(sorted) == 0 || sorted[0].Total <= 0 {
		return cmp
	}
	if len(sorted) > 1 && sorted[1].Total == sorted[0].Total {
		cmp.Tie = true
		return cmp
	}
	cmp.Winner = sorted[0].GroupID
	return cmp
}
