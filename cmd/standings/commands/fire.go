package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/standings/internal/engine"
	"github.com/dyluth/standings/internal/printer"
	"github.com/spf13/cobra"
)

var fireTimeout time.Duration

var fireCmd = &cobra.Command{
	Use:   "fire CYCLE",
	Short: "Fire a cycle now on the running engine",
	Long: `Fire a cycle immediately on the running engine and wait for it to finish.

Cycles: display, reset, groups

A forced firing gets its own invocation id. On success the cycle's
interval restarts from now.

Examples:
  # Archive the current scores into group totals now
  standings fire reset`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{engine.CycleDisplay, engine.CycleReset, engine.CycleGroups},
	RunE:      runFire,
}

func init() {
	fireCmd.Flags().DurationVar(&fireTimeout, "timeout", 5*time.Minute, "How long to wait for the cycle to finish")
	rootCmd.AddCommand(fireCmd)
}

func runFire(cmd *cobra.Command, args []string) error {
	cycle := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	resp, err := engine.NewOpsClient(cfg.OpsAddr).Fire(ctx, cycle)
	if err != nil {
		return printer.ErrorWithContext(
			fmt.Sprintf("failed to fire cycle '%s'", cycle),
			err.Error(),
			map[string]string{"Instance": cfg.Instance, "Ops address": cfg.OpsAddr},
			[]string{
				"Check the engine is running:\n  standings status",
				"Valid cycles: display, reset, groups",
			},
		)
	}

	printer.Success("Cycle %s fired (invocation %s)\n", resp.Cycle, resp.InvocationID)
	return nil
}
