package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/standings/internal/listing"
	"github.com/dyluth/standings/internal/printer"
	"github.com/dyluth/standings/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	scoresOutputFormat string
	scoresTop          int
	scoresMatch        string
	scoresMin          int64
	scoresActiveSince  string
)

var scoresCmd = &cobra.Command{
	Use:   "scores [ENTITY_ID]",
	Short: "Inspect current scores with filtering",
	Long: `Inspect the current scores in list or get mode.

List Mode (no ENTITY_ID):
  Displays ranked entities matching filters as a table or JSONL stream.
  Ranks are positions in the full ranking, before filtering.

Get Mode (with ENTITY_ID):
  Displays the score, rank and last activity of one entity as JSON.

Output Formats (list mode only):
  default - Human-readable table with Rank, Entity, Score and Last Active
  jsonl   - Line-delimited JSON, one entity per line

Filters (list mode only):
  --top           - Only read the top N entities
  --match         - Filter by entity id (glob pattern: "team-a:*")
  --min           - Only entities with at least this score
  --active-since  - Only entities active since this time

Examples:
  # Full ranking
  standings scores

  # Top 5 entities active in the last day
  standings scores --top 5 --active-since 1d

  # Pipe to jq
  standings scores -o jsonl | jq 'select(.score > 100) | .entity_id'

  # One entity
  standings scores 123456789`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScores,
}

func init() {
	scoresCmd.Flags().StringVarP(&scoresOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	scoresCmd.Flags().IntVarP(&scoresTop, "top", "k", 0, "Only read the top N entities (0 = all)")
	scoresCmd.Flags().StringVar(&scoresMatch, "match", "", "Filter by entity id (glob pattern)")
	scoresCmd.Flags().Int64Var(&scoresMin, "min", 0, "Minimum score")
	scoresCmd.Flags().StringVar(&scoresActiveSince, "active-since", "", "Only entities active since this time (interval or RFC3339)")
	rootCmd.AddCommand(scoresCmd)
}

func runScores(cmd *cobra.Command, args []string) error {
	isGetMode := len(args) > 0

	var outputFormat listing.OutputFormat
	if !isGetMode {
		switch scoresOutputFormat {
		case "default":
			outputFormat = listing.OutputFormatDefault
		case "jsonl":
			outputFormat = listing.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", scoresOutputFormat),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	filters := &listing.FilterCriteria{MinScore: scoresMin, IDGlob: scoresMatch}
	if scoresActiveSince != "" {
		since, err := timespec.Parse(scoresActiveSince, time.Now())
		if err != nil {
			return printer.Error(
				"invalid time filter",
				err.Error(),
				[]string{"Use an interval like '1h30m' or '7d', or RFC3339 like '2025-10-29T13:00:00Z'"},
			)
		}
		filters.ActiveSinceMs = since.UnixMilli()
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

	if isGetMode {
		entityID := args[0]
		if err := listing.GetEntity(ctx, store, entityID, os.Stdout); err != nil {
			if listing.IsNotFound(err) {
				return printer.Error(
					fmt.Sprintf("entity '%s' not found", entityID),
					"The entity has no score and no recorded activity.",
					[]string{"List scored entities:\n  standings scores"},
				)
			}
			return fmt.Errorf("failed to get entity: %w", err)
		}
		return nil
	}

	if err := listing.ListScores(ctx, store, cfg.Instance, scoresTop, outputFormat, filters, os.Stdout); err != nil {
		return fmt.Errorf("failed to list scores: %w", err)
	}
	return nil
}
