package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/dyluth/standings/internal/clock"
	"golang.org/x/sync/errgroup"
)

// Group runs several independent cycles. A slow or failing cycle never
// delays another.
type Group struct {
	schedulers map[string]*Scheduler
	names      []string
}

// NewGroup creates a Scheduler per cycle. Cycle names must be unique.
func NewGroup(store StateStore, clk clock.Clock, cycles ...Cycle) (*Group, error) {
	g := &Group{schedulers: make(map[string]*Scheduler, len(cycles))}
	for _, c := range cycles {
		if _, dup := g.schedulers[c.Name]; dup {
			return nil, fmt.Errorf("duplicate cycle name %q", c.Name)
		}
		s, err := New(c, store, clk)
		if err != nil {
			return nil, err
		}
		g.schedulers[c.Name] = s
		g.names = append(g.names, c.Name)
	}
	sort.Strings(g.names)
	return g, nil
}

// Run drives every cycle until ctx is cancelled.
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, name := range g.names {
		s := g.schedulers[name]
		eg.Go(func() error { return s.Run(ctx) })
	}
	return eg.Wait()
}

// ForceFire fires the named cycle now and waits for its result.
func (g *Group) ForceFire(ctx context.Context, name string) (Firing, error) {
	s, ok := g.schedulers[name]
	if !ok {
		return Firing{}, fmt.Errorf("%w: %s", ErrUnknownCycle, name)
	}
	return s.ForceFire(ctx)
}

// Status returns the status of every cycle, ordered by name.
func (g *Group) Status() []Status {
	out := make([]Status, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, g.schedulers[name].Status())
	}
	return out
}

// Peek returns the status of every cycle, falling back to persisted state
// for cycles this process is not running.
func (g *Group) Peek(ctx context.Context) ([]Status, error) {
	out := make([]Status, 0, len(g.names))
	for _, name := range g.names {
		st, err := g.schedulers[name].Peek(ctx)
		if err != nil {
			return nil, fmt.Errorf("cycle %s: %w", name, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// Names returns the cycle names, sorted.
func (g *Group) Names() []string {
	return append([]string(nil), g.names...)
}
