package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/standings/internal/engine"
	"github.com/dyluth/standings/internal/printer"
	"github.com/spf13/cobra"
)

var runOpsAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scoring engine",
	Long: `Run the scoring engine in the foreground until interrupted.

Starts the display, reset and group cycles, and the ops server that
serves /healthz, /status, /cycles/{name}/fire and /metrics.

Examples:
  # Run with ./standings.yml
  standings run

  # Run without the ops server
  standings run --ops-addr ""`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runOpsAddr, "ops-addr", "", "Ops server listen address (overrides ops_addr; empty disables)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	var opts engine.Options
	if cmd.Flags().Changed("ops-addr") {
		opts.OpsAddr = &runOpsAddr
	}

	svc, err := engine.New(cfg, store, opts)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return printer.ErrorWithContext(
			"engine failed to start",
			err.Error(),
			map[string]string{"Instance": cfg.Instance, "Ops address": cfg.OpsAddr},
			[]string{"Check that the ops address is free, or pass --ops-addr"},
		)
	}

	printer.Success("Engine started for instance '%s'\n", cfg.Instance)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(runCtx)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		printer.Info("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		runErr = <-errCh
	case runErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Engine] Ops server shutdown failed: %v", err)
	}

	if runErr != nil {
		return printer.Error("engine stopped with an error", runErr.Error(), nil)
	}

	printer.Println("Engine stopped")
	return nil
}
