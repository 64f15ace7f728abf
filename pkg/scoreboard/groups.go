package scoreboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ArchiveToGroup records that an entity's score was archived by a cycle
// invocation and, the first time only, adds the amount to the entity's group
// total. Returns true when the archive happened now and false when the same
// invocation had already archived this entity (a retry).
//
// An empty GroupID archives the entity without touching any group total.
func (c *Client) ArchiveToGroup(ctx context.Context, invocationID string, r Receipt) (bool, error) {
	if invocationID == "" {
		return false, fmt.Errorf("invocation id cannot be empty")
	}
	if err := r.Validate(); err != nil {
		return false, fmt.Errorf("invalid receipt: %w", err)
	}

	keys := []string{ReceiptKey(c.instanceName, invocationID), GroupsKey(c.instanceName)}
	added, err := archiveScript.Run(ctx, c.rdb, keys,
		r.EntityID, r.GroupID, r.Amount, c.receiptRetention.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to archive %s into group %q: %w", r.EntityID, r.GroupID, err)
	}
	return added == 1, nil
}

// Receipts returns every receipt written for a cycle invocation, sorted by entity id.
// Returns an empty slice if the invocation has archived nothing.
func (c *Client) Receipts(ctx context.Context, invocationID string) ([]Receipt, error) {
	raw, err := c.rdb.HGetAll(ctx, ReceiptKey(c.instanceName, invocationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read receipts for %s: %w", invocationID, err)
	}

	receipts := make([]Receipt, 0, len(raw))
	for entityID, value := range raw {
		r, err := decodeReceiptValue(entityID, value)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].EntityID < receipts[j].EntityID })
	return receipts, nil
}

// GroupTotals returns all group totals sorted by total desc, then group id asc.
func (c *Client) GroupTotals(ctx context.Context) ([]GroupTotal, error) {
	raw, err := c.rdb.HGetAll(ctx, GroupsKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read group totals: %w", err)
	}

	totals := make([]GroupTotal, 0, len(raw))
	for groupID, value := range raw {
		total, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid total for group %s: %w", groupID, err)
		}
		totals = append(totals, GroupTotal{GroupID: groupID, Total: total})
	}
	SortGroupTotals(totals)
	return totals, nil
}

// GroupTotal returns one group's total, or 0 if the group has none.
func (c *Client) GroupTotal(ctx context.Context, groupID string) (int64, error) {
	total, err := c.rdb.HGet(ctx, GroupsKey(c.instanceName), groupID).Int64()
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read total for group %s: %w", groupID, err)
	}
	return total, nil
}

// ClearGroupTotals subtracts exactly the given totals from the group hash,
// once per invocation. Archives that land after the totals were read are kept.
func (c *Client) ClearGroupTotals(ctx context.Context, invocationID string, totals []GroupTotal) (int, error) {
	if invocationID == "" {
		return 0, fmt.Errorf("invocation id cannot be empty")
	}
	if len(totals) == 0 {
		return 0, nil
	}

	args := make([]interface{}, 0, 1+2*len(totals))
	args = append(args, c.receiptRetention.Milliseconds())
	for _, t := range totals {
		args = append(args, t.GroupID, t.Total)
	}

	keys := []string{GroupsKey(c.instanceName), ClearedKey(c.instanceName, invocationID+":groups")}
	n, err := clearGroupsScript.Run(ctx, c.rdb, keys, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to clear group totals: %w", err)
	}
	return n, nil
}

// AnnounceGroupComparison stores the comparison as the last result and
// publishes it on the group events channel.
func (c *Client) AnnounceGroupComparison(ctx context.Context, cmp *GroupComparison) error {
	data, err := json.Marshal(cmp)
	if err != nil {
		return fmt.Errorf("failed to marshal group comparison: %w", err)
	}

	if err := c.rdb.Set(ctx, GroupComparisonKey(c.instanceName), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store group comparison: %w", err)
	}

	if err := c.rdb.Publish(ctx, GroupEventsChannel(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to publish group comparison: %w", err)
	}
	return nil
}

// LastGroupComparison returns the most recently announced comparison.
// Returns redis.Nil if none has been announced.
func (c *Client) LastGroupComparison(ctx context.Context) (*GroupComparison, error) {
	data, err := c.rdb.Get(ctx, GroupComparisonKey(c.instanceName)).Bytes()
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read group comparison: %w", err)
	}

	var cmp GroupComparison
	if err := json.Unmarshal(data, &cmp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal group comparison: %w", err)
	}
	return &cmp, nil
}

// SortGroupTotals orders by total desc, then group id asc.
func SortGroupTotals(totals []GroupTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].GroupID < totals[j].GroupID
	})
}
