// Package engine wires the scoring, ranking, reset and scheduling components
// into one explicitly constructed service with a Start/Run/Shutdown lifecycle.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/standings/internal/clock"
	"github.com/dyluth/standings/internal/config"
	"github.com/dyluth/standings/internal/directory"
	"github.com/dyluth/standings/internal/display"
	"github.com/dyluth/standings/internal/groups"
	"github.com/dyluth/standings/internal/metrics"
	"github.com/dyluth/standings/internal/ranking"
	"github.com/dyluth/standings/internal/reset"
	"github.com/dyluth/standings/internal/scheduler"
	"github.com/dyluth/standings/internal/scoring"
	"github.com/dyluth/standings/pkg/scoreboard"
)

// Cycle names.
const (
	CycleDisplay = "display"
	CycleReset   = "reset"
	CycleGroups  = "groups"
)

// Event is one scoreable action by an entity, e.g. a chat message.
type Event struct {
	EntityID string
	Content  string
	At       time.Time // Defaults to now
}

// EventResult reports how an event was scored.
type EventResult struct {
	Breakdown scoring.Breakdown
	Verdict   scoring.Verdict
	Awarded   int64 // Points added; 0 when gated
	Score     int64 // Entity score after the event
}

// Options overrides the collaborators New would otherwise build from config.
type Options struct {
	Clock    clock.Clock      // Default clock.Real()
	Source   directory.Source // Default HTTPSource for directory.base_url
	Renderer display.Renderer // Default display.TableRenderer
	OpsAddr  *string          // Overrides cfg.OpsAddr; "" disables the ops server
}

// Service owns every component of a standings instance.
type Service struct {
	cfg          *config.Config
	instanceName string
	store        *scoreboard.Client
	clock        clock.Clock

	rules scoring.Rules
	gate  scoring.Gate

	directory   *directory.Client
	cache       *display.Cache
	coordinator *reset.Coordinator
	scheduler   *scheduler.Group
	ops         *OpsServer
}

// New builds a Service from a validated config. The store is owned by the
// caller and is not closed by Shutdown.
func New(cfg *config.Config, store *scoreboard.Client, opts Options) (*Service, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("config and store are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	s := &Service{
		cfg:          cfg,
		instanceName: store.InstanceName(),
		store:        store,
		clock:        opts.Clock,
		rules: scoring.Rules{
			CharPoints:  *cfg.Scoring.CharPoints,
			EmojiPoints: *cfg.Scoring.EmojiPoints,
		},
		gate: scoring.Gate{
			BurstLimit: int64(*cfg.Scoring.BurstLimit),
			Cooldown:   cfg.Scoring.Cooldown.Std(),
		},
	}

	store.SetReceiptRetention(cfg.Reset.ReceiptRetention.Std())

	source := opts.Source
	if source == nil {
		source = directory.NewHTTPSource(cfg.Directory.BaseURL, cfg.Directory.RequestTimeout.Std())
	}
	s.directory = directory.NewClient(source, directory.Options{
		TTL:            cfg.Directory.TTL.Std(),
		MaxRetries:     cfg.Directory.MaxRetries,
		InitialBackoff: cfg.Directory.InitialBackoff.Std(),
		MaxBackoff:     cfg.Directory.MaxBackoff.Std(),
		RatePerSecond:  cfg.Directory.RatePerSecond,
		Burst:          cfg.Directory.Burst,
		Concurrency:    cfg.Directory.Concurrency,
		Clock:          opts.Clock,
		OnNotFound:     s.removeEntity,
	})

	cache, err := display.NewCache(display.Config{
		Channel:   cfg.Channel,
		Resolver:  s.directory,
		Renderer:  opts.Renderer,
		Publisher: store,
		Pointers:  store,
		Clock:     opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}
	s.cache = cache

	s.coordinator = reset.NewCoordinator(reset.Config{
		Store:      store,
		Aggregator: groups.NewAggregator(s.directory, store),
		Announcer:  store,
		Clock:      opts.Clock,
		TopK:       *cfg.Reset.TopK,
	})

	retry := cfg.Reset.RetryInterval.Std()
	group, err := scheduler.NewGroup(store, opts.Clock,
		scheduler.Cycle{Name: CycleDisplay, Interval: cfg.Display.Refresh.Std(), RetryInterval: retry, Run: s.runDisplay},
		scheduler.Cycle{Name: CycleReset, Interval: cfg.Reset.Interval.Std(), RetryInterval: retry, Run: s.runReset},
		scheduler.Cycle{Name: CycleGroups, Interval: cfg.Groups.Interval.Std(), RetryInterval: retry, Run: s.runGroups},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.scheduler = group

	opsAddr := cfg.OpsAddr
	if opts.OpsAddr != nil {
		opsAddr = *opts.OpsAddr
	}
	if opsAddr != "" {
		s.ops = NewOpsServer(opsAddr, s)
	}

	return s, nil
}

// Start brings up the ops server. It does not start the cycles; Run does.
func (s *Service) Start(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("redis not accessible: %w", err)
	}
	if s.ops != nil {
		if err := s.ops.Start(); err != nil {
			return fmt.Errorf("failed to start ops server: %w", err)
		}
		log.Printf("[Engine] Ops server listening on %s", s.ops.Addr())
	}
	return nil
}

// OpsAddr returns the ops server's bound address, or "" when it is disabled.
func (s *Service) OpsAddr() string {
	if s.ops == nil {
		return ""
	}
	return s.ops.Addr()
}

// Run drives every cycle until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log.Printf("[Engine] Starting cycles %v for instance '%s'", s.scheduler.Names(), s.instanceName)
	err := s.scheduler.Run(ctx)
	log.Printf("[Engine] Cycles stopped")
	return err
}

// Shutdown stops the ops server.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.ops == nil {
		return nil
	}
	return s.ops.Shutdown(ctx)
}

// Increment adds amount points to an entity's score and returns the new score.
func (s *Service) Increment(ctx context.Context, entityID string, amount int64) (int64, error) {
	return s.store.Increment(ctx, entityID, amount)
}

// RecordActivity marks the entity active now.
func (s *Service) RecordActivity(ctx context.Context, entityID string) (scoreboard.ActivityResult, error) {
	return s.store.RecordActivity(ctx, entityID, s.clock.Now(), s.cfg.Scoring.BurstWindow.Std())
}

// HandleEvent scores an event, records the activity and, unless the entity
// is gated, adds the points.
func (s *Service) HandleEvent(ctx context.Context, ev Event) (*EventResult, error) {
	if ev.EntityID == "" {
		return nil, fmt.Errorf("entity id cannot be empty")
	}
	at := ev.At
	if at.IsZero() {
		at = s.clock.Now()
	}

	result := &EventResult{Breakdown: s.rules.Score(ev.Content)}

	activity, err := s.store.RecordActivity(ctx, ev.EntityID, at, s.cfg.Scoring.BurstWindow.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}

	result.Verdict = s.gate.Check(at, activity.Previous, activity.BurstCount)
	metrics.EventScored(string(result.Verdict))

	amount := result.Breakdown.Points
	if result.Verdict != scoring.Allowed {
		s.logEvent("event_gated", map[string]interface{}{
			"entity_id":   ev.EntityID,
			"verdict":     string(result.Verdict),
			"burst_count": activity.BurstCount,
		})
		amount = 0
	}

	score, err := s.store.Increment(ctx, ev.EntityID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to increment score: %w", err)
	}
	result.Awarded = amount
	result.Score = score
	return result, nil
}

// ForceFireCycle runs the named cycle now and waits for it to finish.
func (s *Service) ForceFireCycle(ctx context.Context, name string) (scheduler.Firing, error) {
	f, err := s.scheduler.ForceFire(ctx, name)
	if err != nil {
		return f, err
	}
	s.logEvent("cycle_forced", map[string]interface{}{
		"cycle":         name,
		"invocation_id": f.InvocationID,
	})
	return f, nil
}

// ScheduleStatus returns the state of every cycle. Cycles this process is
// not running are reported from their persisted state.
func (s *Service) ScheduleStatus(ctx context.Context) ([]scheduler.Status, error) {
	return s.scheduler.Peek(ctx)
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) runDisplay(ctx context.Context, f scheduler.Firing) error {
	snap, err := ranking.Compute(ctx, s.store, s.cfg.Display.TopK, s.clock.Now())
	if err != nil {
		return err
	}
	outcome, err := s.cache.MaybeRegenerate(ctx, snap)
	if err != nil {
		return fmt.Errorf("failed to regenerate ranking: %w", err)
	}
	if outcome == display.Published {
		s.logEvent("ranking_published", map[string]interface{}{
			"invocation_id": f.InvocationID,
			"channel":       s.cfg.Channel,
			"entries":       len(snap.Entries),
			"fingerprint":   snap.Fingerprint,
		})
	}
	return nil
}

func (s *Service) runReset(ctx context.Context, f scheduler.Firing) error {
	report, err := s.coordinator.RunEntityReset(ctx, f.InvocationID)
	if err != nil {
		return err
	}
	s.logEvent("reset_completed", map[string]interface{}{
		"invocation_id": report.InvocationID,
		"archived":      report.Archived,
		"retired":       report.Retired,
		"resumed":       report.Resumed,
		"not_found":     report.NotFound,
		"unresolved":    len(report.Unresolved),
		"cleared":       report.Cleared,
		"forced":        f.Forced,
	})
	return nil
}

func (s *Service) runGroups(ctx context.Context, f scheduler.Firing) error {
	cmp, err := s.coordinator.RunGroupCycle(ctx, f.InvocationID)
	if err != nil {
		return err
	}
	s.logEvent("groups_compared", map[string]interface{}{
		"invocation_id": cmp.InvocationID,
		"winner":        cmp.Winner,
		"tie":           cmp.Tie,
		"groups":        len(cmp.Totals),
	})
	return nil
}

// removeEntity deletes local state for an entity the directory reports gone.
func (s *Service) removeEntity(ctx context.Context, entityID string) error {
	if err := s.store.DeleteEntity(ctx, entityID); err != nil {
		return err
	}
	s.logEvent("entity_removed", map[string]interface{}{
		"entity_id": entityID,
	})
	return nil
}

// logEvent logs a structured event in JSON format.
func (s *Service) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["instance"] = s.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
