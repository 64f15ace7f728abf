package scoreboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Increment adds amount to an entity's cumulative score and returns the new score.
// The record is created on first increment. Negative amounts are rejected so the
// score can never decrease through ingestion.
func (c *Client) Increment(ctx context.Context, entityID string, amount int64) (int64, error) {
	if entityID == "" {
		return 0, fmt.Errorf("entity id cannot be empty")
	}
	if amount < 0 {
		return 0, fmt.Errorf("increment amount must be >= 0, got %d", amount)
	}

	key := ScoresKey(c.instanceName)
	if amount == 0 {
		return c.Score(ctx, entityID)
	}

	score, err := c.rdb.ZIncrBy(ctx, key, float64(amount), entityID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment score for %s: %w", entityID, err)
	}
	return int64(score), nil
}

// Score returns an entity's cumulative score, or 0 if it has none.
func (c *Client) Score(ctx context.Context, entityID string) (int64, error) {
	key := ScoresKey(c.instanceName)
	score, err := c.rdb.ZScore(ctx, key, entityID).Result()
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read score for %s: %w", entityID, err)
	}
	return int64(score), nil
}

// TopK returns the k highest scores, sorted by score descending with ties broken
// by entity id ascending. k <= 0 returns every entity.
//
// Redis orders equal scores by member in reverse lexical order under ZREVRANGE,
// so entries tied with the k-th score are re-read in ascending order to decide
// which of them make the cut.
func (c *Client) TopK(ctx context.Context, k int) ([]Entry, error) {
	key := ScoresKey(c.instanceName)

	stop := int64(k - 1)
	if k <= 0 {
		stop = -1
	}

	results, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read top scores: %w", err)
	}

	entries := zToEntries(results)
	if k <= 0 || len(entries) < k {
		sortEntries(entries)
		return entries, nil
	}

	// Full page: everything strictly above the boundary score is certainly in
	// the top k; the boundary slots go to tied members in ascending id order.
	boundary := entries[len(entries)-1].Score
	above := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Score > boundary {
			above = append(above, e)
		}
	}
	sortEntries(above)

	need := int64(k - len(above))
	boundaryStr := strconv.FormatInt(boundary, 10)
	tied, err := c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   boundaryStr,
		Max:   boundaryStr,
		Count: need,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tied scores: %w", err)
	}

	for _, member := range tied {
		above = append(above, Entry{EntityID: member, Score: boundary})
	}
	return above, nil
}

// Count returns the number of entities with a non-zero score.
func (c *Client) Count(ctx context.Context) (int64, error) {
	n, err := c.rdb.ZCard(ctx, ScoresKey(c.instanceName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count scores: %w", err)
	}
	return n, nil
}

// ClearArchived subtracts exactly the receipted amount from each entity's score.
// Points added after the snapshot that produced the receipts are preserved.
// The operation is idempotent per (invocationID, entity): replaying it after a
// crash never subtracts twice. Returns the number of entities cleared now.
func (c *Client) ClearArchived(ctx context.Context, invocationID string, receipts []Receipt) (int, error) {
	if invocationID == "" {
		return 0, fmt.Errorf("invocation id cannot be empty")
	}
	if len(receipts) == 0 {
		return 0, nil
	}

	args := make([]interface{}, 0, 1+2*len(receipts))
	args = append(args, c.receiptRetention.Milliseconds())
	for _, r := range receipts {
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("invalid receipt: %w", err)
		}
		args = append(args, r.EntityID, r.Amount)
	}

	keys := []string{ScoresKey(c.instanceName), ClearedKey(c.instanceName, invocationID)}
	n, err := clearArchivedScript.Run(ctx, c.rdb, keys, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to clear archived scores: %w", err)
	}
	return n, nil
}

// DeleteScore removes an entity's score entirely.
func (c *Client) DeleteScore(ctx context.Context, entityID string) error {
	if err := c.rdb.ZRem(ctx, ScoresKey(c.instanceName), entityID).Err(); err != nil {
		return fmt.Errorf("failed to delete score for %s: %w", entityID, err)
	}
	return nil
}

// DeleteEntity removes every durable record of an entity (score, activity and
// burst counter) in a single transaction. Used when the directory reports the
// entity permanently gone.
func (c *Client) DeleteEntity(ctx context.Context, entityID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, ScoresKey(c.instanceName), entityID)
		pipe.HDel(ctx, ActivityKey(c.instanceName), entityID)
		pipe.Del(ctx, BurstKey(c.instanceName, entityID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete entity %s: %w", entityID, err)
	}
	return nil
}

func zToEntries(zs []redis.Z) []Entry {
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{EntityID: member, Score: int64(z.Score)})
	}
	return entries
}

// sortEntries orders by score desc, then entity id asc.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].EntityID < entries[j].EntityID
	})
}
