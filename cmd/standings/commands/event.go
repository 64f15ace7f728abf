package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/standings/internal/engine"
	"github.com/dyluth/standings/internal/printer"
	"github.com/dyluth/standings/internal/scoring"
	"github.com/spf13/cobra"
)

var eventAt string

var eventCmd = &cobra.Command{
	Use:   "event ENTITY_ID CONTENT...",
	Short: "Score one event for an entity",
	Long: `Score one event for an entity, exactly as the ingestion path does.

The content is scored (URLs stripped, one point per character, five
per emoji), checked against the burst limit and cooldown, and the
entity's activity is recorded even when the event is gated.

Examples:
  standings event 123456789 "hello world 🎉"

  # Backdate an event
  standings event 123456789 "late message" --at 2025-10-29T13:00:00Z`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEvent,
}

func init() {
	eventCmd.Flags().StringVar(&eventAt, "at", "", "Event time in RFC3339 (default now)")
	rootCmd.AddCommand(eventCmd)
}

func runEvent(cmd *cobra.Command, args []string) error {
	ev := engine.Event{EntityID: args[0], Content: strings.Join(args[1:], " ")}
	if eventAt != "" {
		at, err := time.Parse(time.RFC3339, eventAt)
		if err != nil {
			return printer.Error(
				"invalid event time",
				err.Error(),
				[]string{"Use RFC3339 like '2025-10-29T13:00:00Z'"},
			)
		}
		ev.At = at
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	noOps := ""
	svc, err := engine.New(cfg, store, engine.Options{OpsAddr: &noOps})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	res, err := svc.HandleEvent(ctx, ev)
	if err != nil {
		return printer.Error("event not recorded", err.Error(), nil)
	}

	if res.Verdict != scoring.Allowed {
		printer.Warning("Event gated (%s): no points awarded, score %d\n", res.Verdict, res.Score)
		return nil
	}
	printer.Success("+%d points for %s (%d chars, %d emoji), score %d\n",
		res.Awarded, ev.EntityID, res.Breakdown.Chars, res.Breakdown.Emojis, res.Score)
	return nil
}
