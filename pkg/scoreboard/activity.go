package scoreboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecordActivity upserts the entity's last-event time and counts the event in
// the entity's burst window. The stored time never moves backwards, so late
// or reordered events cannot rewind it. A non-positive burstWindow disables
// burst counting (BurstCount is then 0).
func (c *Client) RecordActivity(ctx context.Context, entityID string, at time.Time, burstWindow time.Duration) (ActivityResult, error) {
	if entityID == "" {
		return ActivityResult{}, fmt.Errorf("entity id cannot be empty")
	}

	keys := []string{ActivityKey(c.instanceName), BurstKey(c.instanceName, entityID)}
	window := burstWindow.Milliseconds()
	if window < 0 {
		window = 0
	}

	raw, err := recordActivityScript.Run(ctx, c.rdb, keys, entityID, at.UnixMilli(), window).Slice()
	if err != nil {
		return ActivityResult{}, fmt.Errorf("failed to record activity for %s: %w", entityID, err)
	}
	if len(raw) != 2 {
		return ActivityResult{}, fmt.Errorf("unexpected activity script reply: %v", raw)
	}

	prevMs, err := toInt64(raw[0])
	if err != nil {
		return ActivityResult{}, fmt.Errorf("invalid previous activity for %s: %w", entityID, err)
	}
	count, err := toInt64(raw[1])
	if err != nil {
		return ActivityResult{}, fmt.Errorf("invalid burst count for %s: %w", entityID, err)
	}

	return ActivityResult{Previous: msToTime(prevMs), BurstCount: count}, nil
}

// LastActivity returns the entity's last-event time.
// Returns redis.Nil if the entity has no recorded activity.
func (c *Client) LastActivity(ctx context.Context, entityID string) (time.Time, error) {
	value, err := c.rdb.HGet(ctx, ActivityKey(c.instanceName), entityID).Result()
	if err != nil {
		if IsNotFound(err) {
			return time.Time{}, redis.Nil
		}
		return time.Time{}, fmt.Errorf("failed to read activity for %s: %w", entityID, err)
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid activity value for %s: %w", entityID, err)
	}
	return msToTime(ms), nil
}

// DeleteActivity removes the entity's activity record and burst counter.
func (c *Client) DeleteActivity(ctx context.Context, entityID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, ActivityKey(c.instanceName), entityID)
		pipe.Del(ctx, BurstKey(c.instanceName, entityID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete activity for %s: %w", entityID, err)
	}
	return nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
