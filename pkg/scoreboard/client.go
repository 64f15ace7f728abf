package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultReceiptRetention bounds how long reset receipts are kept.
// A retried invocation must happen within this window to stay idempotent.
const DefaultReceiptRetention = 7 * 24 * time.Hour

// Client provides instance-scoped Redis operations for the scoreboard.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb              *redis.Client
	instanceName     string
	receiptRetention time.Duration
}

// NewClient creates a new scoreboard client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: standings instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:              redis.NewClient(redisOpts),
		instanceName:     instanceName,
		receiptRetention: DefaultReceiptRetention,
	}, nil
}

// SetReceiptRetention overrides how long reset receipts and cleared sets live.
// Non-positive values are ignored.
func (c *Client) SetReceiptRetention(d time.Duration) {
	if d > 0 {
		c.receiptRetention = d
	}
}

// InstanceName returns the namespace this client writes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// MarkOnce records that a one-shot step of a cycle invocation ran.
// Returns true the first time it is called for (invocationID, step) and false
// on every later call within the receipt retention window.
func (c *Client) MarkOnce(ctx context.Context, invocationID, step string) (bool, error) {
	if invocationID == "" {
		return false, fmt.Errorf("invocation id cannot be empty")
	}
	key := OnceKey(c.instanceName, invocationID, step)
	ok, err := c.rdb.SetNX(ctx, key, time.Now().UnixMilli(), c.receiptRetention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s for invocation %s: %w", step, invocationID, err)
	}
	return ok, nil
}

// UnmarkOnce removes a marker written by MarkOnce so the step can run again.
// Used when the step itself failed after being marked.
func (c *Client) UnmarkOnce(ctx context.Context, invocationID, step string) error {
	key := OnceKey(c.instanceName, invocationID, step)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to unmark %s for invocation %s: %w", step, invocationID, err)
	}
	return nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetScheduleState, GetCurrentArtifact or similar returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
