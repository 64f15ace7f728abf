package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/standings/internal/printer"
	"github.com/dyluth/standings/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit        bool
	initInstance     string
	initRedisURL     string
	initDirectoryURL string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a standings.yml configuration",
	Long: `Create a standings.yml configuration in the current directory.

The generated file carries the default cycle intervals, directory
limits and scoring weights, and is validated before it is written.

Use --force to overwrite an existing standings.yml.`,
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it is easy to confuse with --config
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing standings.yml")
	initCmd.Flags().StringVar(&initInstance, "instance", "", "Instance name, used to namespace Redis keys (required)")
	initCmd.Flags().StringVar(&initRedisURL, "redis-url", "", "Redis URL (default redis://localhost:6379)")
	initCmd.Flags().StringVar(&initDirectoryURL, "directory-url", "", "Base URL of the directory service (required)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if initInstance == "" || initDirectoryURL == "" {
		return printer.Error(
			"missing required flags",
			"Both --instance and --directory-url are required.",
			[]string{"standings init --instance prod --directory-url http://directory:8080"},
		)
	}

	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Check for an existing file (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return err
		}
	}

	opts := scaffold.Options{
		Instance:     initInstance,
		RedisURL:     initRedisURL,
		DirectoryURL: initDirectoryURL,
	}
	if err := scaffold.Initialize(dir, forceInit, opts); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
