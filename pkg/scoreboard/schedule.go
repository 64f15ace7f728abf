package scoreboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldLastFiredAt   = "last_fired_at_ms"
	fieldInitializedAt = "initialized_at_ms"
)

// GetScheduleState reads the persisted state of a named cycle.
// Returns (nil, redis.Nil) if the cycle has never been initialized.
func (c *Client) GetScheduleState(ctx context.Context, cycleName string) (*ScheduleState, error) {
	raw, err := c.rdb.HGetAll(ctx, ScheduleKey(c.instanceName, cycleName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule state for %s: %w", cycleName, err)
	}
	if len(raw) == 0 {
		return nil, redis.Nil
	}

	state := &ScheduleState{Cycle: cycleName}
	if v, ok := raw[fieldLastFiredAt]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s for %s: %w", fieldLastFiredAt, cycleName, err)
		}
		state.LastFiredAt = msToTime(ms)
	}
	if v, ok := raw[fieldInitializedAt]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s for %s: %w", fieldInitializedAt, cycleName, err)
		}
		state.InitializedAt = msToTime(ms)
	}
	return state, nil
}

// InitScheduleState records the first time a cycle was seen.
// It never overwrites an existing initialization time.
func (c *Client) InitScheduleState(ctx context.Context, cycleName string, at time.Time) error {
	key := ScheduleKey(c.instanceName, cycleName)
	if err := c.rdb.HSetNX(ctx, key, fieldInitializedAt, timeToMs(at)).Err(); err != nil {
		return fmt.Errorf("failed to initialize schedule state for %s: %w", cycleName, err)
	}
	return nil
}

// RecordCycleFired persists the completion time of a successful cycle run.
func (c *Client) RecordCycleFired(ctx context.Context, cycleName string, at time.Time) error {
	key := ScheduleKey(c.instanceName, cycleName)
	if err := c.rdb.HSet(ctx, key, fieldLastFiredAt, timeToMs(at)).Err(); err != nil {
		return fmt.Errorf("failed to record firing of %s: %w", cycleName, err)
	}
	return nil
}
