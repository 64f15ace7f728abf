// Package reset implements the periodic archive-then-clear cycles.
//
// The entity reset archives each ranked entity's score into its group total
// and then subtracts exactly the archived amount from the entity, so points
// earned while the reset runs are kept. Every step is idempotent per cycle
// invocation: a retried invocation archives nothing twice and clears nothing
// twice.
package reset

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/dyluth/standings/internal/clock"
	"github.com/dyluth/standings/internal/directory"
	"github.com/dyluth/standings/internal/groups"
	"github.com/dyluth/standings/internal/metrics"
	"github.com/dyluth/standings/pkg/scoreboard"
)

// Store is the persistence the coordinator needs.
// *scoreboard.Client implements it.
type Store interface {
	TopK(ctx context.Context, k int) ([]scoreboard.Entry, error)
	Receipts(ctx context.Context, invocationID string) ([]scoreboard.Receipt, error)
	ClearArchived(ctx context.Context, invocationID string, receipts []scoreboard.Receipt) (int, error)
	LastGroupComparison(ctx context.Context) (*scoreboard.GroupComparison, error)
	MarkOnce(ctx context.Context, invocationID, step string) (bool, error)
	UnmarkOnce(ctx context.Context, invocationID, step string) error
}

// Announcer publishes the group comparison.
type Announcer interface {
	AnnounceGroupComparison(ctx context.Context, cmp *scoreboard.GroupComparison) error
}

// Report summarises one entity reset invocation.
type Report struct {
	InvocationID string
	Archived     int      // Receipts written into a group by this run
	Retired      int      // Receipts written for entities in no group
	Resumed      int      // Entities already archived by an earlier attempt
	NotFound     int      // Entities the directory no longer knows (cleaned up)
	Unresolved   []string // Entities left untouched until the next cycle
	Cleared      int      // Entities whose archived amount was subtracted by this run
}

// Partial reports whether some entities could not be archived this time.
func (r *Report) Partial() bool {
	return len(r.Unresolved) > 0
}

// Coordinator runs the reset and group cycles.
type Coordinator struct {
	store      Store
	aggregator *groups.Aggregator
	announcer  Announcer
	clock      clock.Clock
	topK       int
}

// Config wires a Coordinator.
type Config struct {
	Store      Store
	Aggregator *groups.Aggregator
	Announcer  Announcer
	Clock      clock.Clock // Default clock.Real()
	TopK       int         // Entities archived per reset; 0 = every entity
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Coordinator{
		store:      cfg.Store,
		aggregator: cfg.Aggregator,
		announcer:  cfg.Announcer,
		clock:      cfg.Clock,
		topK:       cfg.TopK,
	}
}

// RunEntityReset archives the current top entities into their groups and then
// clears exactly what was archived.
//
// Entities the directory cannot resolve right now are left untouched and
// listed in Report.Unresolved; that is not an error. Persistence failures
// abort the run and return an error so the scheduler retries the same
// invocation.
func (c *Coordinator) RunEntityReset(ctx context.Context, invocationID string) (*Report, error) {
	report := &Report{InvocationID: invocationID}

	existing, err := c.store.Receipts(ctx, invocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	done := make(map[string]bool, len(existing))
	for _, r := range existing {
		done[r.EntityID] = true
	}
	report.Resumed = len(existing)

	entries, err := c.store.TopK(ctx, c.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot scores: %w", err)
	}

	pending := make([]scoreboard.Entry, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if done[e.EntityID] {
			continue
		}
		pending = append(pending, e)
		ids = append(ids, e.EntityID)
	}

	memberships, err := c.aggregator.BeginCycle().Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, e := range pending {
		m := memberships[e.EntityID]
		switch {
		case directory.IsNotFound(m.Err):
			report.NotFound++
			continue
		case m.Err != nil:
			report.Unresolved = append(report.Unresolved, e.EntityID)
			continue
		}

		receipt := scoreboard.Receipt{EntityID: e.EntityID, GroupID: m.GroupID, Amount: e.Score}
		added, err := c.aggregator.Archive(ctx, invocationID, receipt)
		if err != nil {
			return nil, fmt.Errorf("failed to archive %s: %w", e.EntityID, err)
		}
		if !added {
			report.Resumed++
			continue
		}
		if m.GroupID == "" {
			report.Retired++
		} else {
			report.Archived++
		}
	}

	// Clear from the stored receipts, not the snapshot: they are the record
	// of what was archived, including by earlier attempts.
	receipts, err := c.store.Receipts(ctx, invocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload receipts: %w", err)
	}
	cleared, err := c.store.ClearArchived(ctx, invocationID, receipts)
	if err != nil {
		return nil, fmt.Errorf("failed to clear archived scores: %w", err)
	}
	report.Cleared = cleared

	sort.Strings(report.Unresolved)
	metrics.ResetEntities("archived", report.Archived)
	metrics.ResetEntities("retired", report.Retired)
	metrics.ResetEntities("unresolved", len(report.Unresolved))
	metrics.ResetEntities("cleared", report.Cleared)

	if report.Partial() {
		log.Printf("[Reset] Invocation %s: %d entities unresolved, kept for next cycle: %v",
			invocationID, len(report.Unresolved), report.Unresolved)
	}
	log.Printf("[Reset] Invocation %s complete: archived=%d retired=%d resumed=%d not_found=%d cleared=%d",
		invocationID, report.Archived, report.Retired, report.Resumed, report.NotFound, report.Cleared)

	return report, nil
}

// RunGroupCycle announces the group standings and then subtracts exactly the
// announced totals. Archives that land after the announcement carry over to
// the next group cycle.
//
// A retry of the same invocation reuses the comparison it already announced
// and does not announce again.
func (c *Coordinator) RunGroupCycle(ctx context.Context, invocationID string) (*scoreboard.GroupComparison, error) {
	cmp, err := c.announcedComparison(ctx, invocationID)
	if err != nil {
		return nil, err
	}

	if cmp == nil {
		totals, err := c.aggregator.Totals(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read group totals: %w", err)
		}
		cmp = groups.Compare(invocationID, totals, c.clock.Now())

		first, err := c.store.MarkOnce(ctx, invocationID, "announce")
		if err != nil {
			return nil, fmt.Errorf("failed to mark announcement: %w", err)
		}
		if first {
			if err := c.announcer.AnnounceGroupComparison(ctx, cmp); err != nil {
				if uerr := c.store.UnmarkOnce(ctx, invocationID, "announce"); uerr != nil {
					log.Printf("[Reset] Failed to unmark announcement for %s: %v", invocationID, uerr)
				}
				return nil, fmt.Errorf("failed to announce group comparison: %w", err)
			}
			log.Printf("[Reset] Group comparison %s announced: winner=%q tie=%v groups=%d",
				invocationID, cmp.Winner, cmp.Tie, len(cmp.Totals))
		}
	}

	if _, err := c.aggregator.Clear(ctx, invocationID, cmp.Totals); err != nil {
		return nil, fmt.Errorf("failed to clear group totals: %w", err)
	}
	return cmp, nil
}

func (c *Coordinator) announcedComparison(ctx context.Context, invocationID string) (*scoreboard.GroupComparison, error) {
	last, err := c.store.LastGroupComparison(ctx)
	if err != nil {
		if scoreboard.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last group comparison: %w", err)
	}
	if last.InvocationID != invocationID {
		return nil, nil
	}
	return last, nil
}
