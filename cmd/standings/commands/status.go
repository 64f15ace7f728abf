package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/standings/internal/config"
	"github.com/dyluth/standings/internal/engine"
	"github.com/dyluth/standings/internal/printer"
	"github.com/spf13/cobra"
)

var statusOutputFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every cycle",
	Long: `Show the state of the display, reset and group cycles.

Asks the running engine's ops server first. If no engine answers, the
persisted schedule state is read from Redis instead and every cycle
is reported as stopped.

Output Formats:
  default - Table with state, interval, last firing and time remaining
  json    - The cycle statuses as a JSON array`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusOutputFormat != "default" && statusOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", statusOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	statuses, err := liveStatus(ctx, cfg)
	if err != nil {
		if statusOutputFormat == "default" {
			printer.Warning("Engine not reachable, showing persisted schedule state\n\n")
		}
		statuses, err = persistedStatus(ctx, cfg)
		if err != nil {
			return err
		}
	}

	if statusOutputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	return printStatusTable(statuses, time.Now())
}

func liveStatus(ctx context.Context, cfg *config.Config) ([]engine.CycleStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return engine.NewOpsClient(cfg.OpsAddr).Status(ctx)
}

func persistedStatus(ctx context.Context, cfg *config.Config) ([]engine.CycleStatus, error) {
	store, err := connectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	noOps := ""
	svc, err := engine.New(cfg, store, engine.Options{OpsAddr: &noOps})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	statuses, err := svc.ScheduleStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule state: %w", err)
	}

	out := make([]engine.CycleStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, engine.NewCycleStatus(st))
	}
	return out, nil
}

func printStatusTable(statuses []engine.CycleStatus, now time.Time) error {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		lastErr := st.LastError
		if lastErr == "" {
			lastErr = "-"
		}
		rows = append(rows, []string{
			st.Cycle,
			st.State,
			st.Interval,
			formatStatusTime(st.LastFiredAt, now),
			formatStatusTime(st.NextDue, now),
			st.Remaining,
			lastErr,
		})
	}
	return printer.Table([]string{"Cycle", "State", "Interval", "Last Fired", "Next Due", "Remaining", "Last Error"}, rows)
}

func formatStatusTime(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Local().Format("15:04:05")
	}
	return t.Local().Format("2006-01-02 15:04")
}
