package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/standings/internal/config"
	"github.com/dyluth/standings/internal/printer"
	"github.com/dyluth/standings/pkg/scoreboard"
	"github.com/redis/go-redis/v9"
)

// loadConfig reads the file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"configuration not loaded",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{
				"Create a configuration:\n  standings init --instance <name> --directory-url <url>",
				"Point at an existing file:\n  standings --config path/to/standings.yml",
			},
		)
	}
	return cfg, nil
}

// connectStore opens the instance's score store and verifies Redis is reachable.
func connectStore(ctx context.Context, cfg *config.Config) (*scoreboard.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid redis_url",
			fmt.Sprintf("Could not parse %s: %v", cfg.RedisURL, err),
			[]string{"Use the form redis://host:port/db"},
		)
	}

	store, err := scoreboard.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create score store client: %w", err)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.RedisURL),
			map[string]string{"Instance": cfg.Instance, "Error": err.Error()},
			[]string{
				"Check that Redis is running and reachable",
				"Override the address:\n  REDIS_URL=redis://host:6379 standings ...",
			},
		)
	}

	return store, nil
}
