package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/standings/internal/printer"
	"github.com/dyluth/standings/internal/watch"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream artifact and group announcements",
	Long: `Stream ranking artifacts and group comparisons as they are announced.

Shows every published and retired ranking artifact and every group
comparison, the same events a chat integration would act on.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the configured instance
  standings watch

  # Export events as JSON
  standings watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	formatter, err := watch.NewFormatter(os.Stdout, outputFormat)
	if err != nil {
		return err
	}

	if outputFormat == watch.OutputFormatDefault {
		printer.Info("Watching instance '%s' (Ctrl+C to stop)\n", cfg.Instance)
	}
	return watch.Stream(ctx, store, formatter, os.Stderr)
}
