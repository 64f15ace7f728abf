package scoreboard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrement(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("accumulates a running sum", func(t *testing.T) {
		score, err := client.Increment(ctx, "u1", 10)
		require.NoError(t, err)
		assert.Equal(t, int64(10), score)

		score, err = client.Increment(ctx, "u1", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(15), score)

		got, err := client.Score(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(15), got)
	})

	t.Run("zero amount is a read", func(t *testing.T) {
		score, err := client.Increment(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), score)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		_, err := client.Increment(ctx, "u1", -1)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be >= 0")

		got, err := client.Score(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(15), got)
	})

	t.Run("rejects empty entity", func(t *testing.T) {
		_, err := client.Increment(ctx, "", 1)
		assert.Error(t, err)
	})

	t.Run("unknown entity scores zero", func(t *testing.T) {
		got, err := client.Score(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, int64(0), got)
	})
}

func TestIncrement_Concurrent(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := client.Increment(ctx, "hot", 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := client.Score(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(600), got)
}

func TestTopK(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	seed := map[string]int64{"a": 5, "b": 20, "c": 20, "d": 1, "e": 20, "f": 7}
	for id, score := range seed {
		_, err := client.Increment(ctx, id, score)
		require.NoError(t, err)
	}

	t.Run("orders by score desc then id asc", func(t *testing.T) {
		entries, err := client.TopK(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{EntityID: "b", Score: 20},
			{EntityID: "c", Score: 20},
			{EntityID: "e", Score: 20},
			{EntityID: "f", Score: 7},
			{EntityID: "a", Score: 5},
			{EntityID: "d", Score: 1},
		}, entries)
	})

	t.Run("ties at the boundary go to the lowest ids", func(t *testing.T) {
		entries, err := client.TopK(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{EntityID: "b", Score: 20},
			{EntityID: "c", Score: 20},
		}, entries)
	})

	t.Run("boundary below a tie block", func(t *testing.T) {
		entries, err := client.TopK(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{EntityID: "b", Score: 20},
			{EntityID: "c", Score: 20},
			{EntityID: "e", Score: 20},
			{EntityID: "f", Score: 7},
		}, entries)
	})

	t.Run("k larger than population", func(t *testing.T) {
		entries, err := client.TopK(ctx, 50)
		require.NoError(t, err)
		assert.Len(t, entries, 6)
	})

	t.Run("identical state gives identical output", func(t *testing.T) {
		first, err := client.TopK(ctx, 3)
		require.NoError(t, err)
		second, err := client.TopK(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("empty store", func(t *testing.T) {
		empty, _ := setupTestClient(t)
		entries, err := empty.TopK(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestClearArchived(t *testing.T) {
	ctx := context.Background()

	t.Run("subtracts exactly the archived amount", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.Increment(ctx, "u1", 15)
		require.NoError(t, err)
		_, err = client.Increment(ctx, "u2", 20)
		require.NoError(t, err)

		// Points earned after the snapshot must survive.
		_, err = client.Increment(ctx, "u1", 4)
		require.NoError(t, err)

		n, err := client.ClearArchived(ctx, "reset:1", []Receipt{
			{EntityID: "u1", GroupID: "A", Amount: 15},
			{EntityID: "u2", GroupID: "B", Amount: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		u1, err := client.Score(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), u1)

		u2, err := client.Score(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, int64(0), u2)

		count, err := client.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "fully cleared entities leave the ranking")
	})

	t.Run("replaying an invocation is a no-op", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.Increment(ctx, "u1", 30)
		require.NoError(t, err)

		receipts := []Receipt{{EntityID: "u1", Amount: 10}}
		n, err := client.ClearArchived(ctx, "reset:2", receipts)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = client.ClearArchived(ctx, "reset:2", receipts)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		got, err := client.Score(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(20), got)
	})

	t.Run("never goes negative", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.Increment(ctx, "u1", 3)
		require.NoError(t, err)

		_, err = client.ClearArchived(ctx, "reset:3", []Receipt{{EntityID: "u1", Amount: 10}})
		require.NoError(t, err)

		got, err := client.Score(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), got)
	})

	t.Run("validates input", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.ClearArchived(ctx, "", []Receipt{{EntityID: "u1", Amount: 1}})
		assert.Error(t, err)

		_, err = client.ClearArchived(ctx, "reset:4", []Receipt{{EntityID: "u1", Amount: -1}})
		assert.Error(t, err)

		n, err := client.ClearArchived(ctx, "reset:4", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("preserves increments racing with the clear", func(t *testing.T) {
		client, _ := setupTestClient(t)
		for i := 0; i < 10; i++ {
			_, err := client.Increment(ctx, fmt.Sprintf("e%d", i), 100)
			require.NoError(t, err)
		}
		snapshot, err := client.TopK(ctx, 0)
		require.NoError(t, err)

		receipts := make([]Receipt, 0, len(snapshot))
		for _, e := range snapshot {
			receipts = append(receipts, Receipt{EntityID: e.EntityID, Amount: e.Score})
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := client.Increment(ctx, fmt.Sprintf("e%d", i), 7)
				assert.NoError(t, err)
			}
		}()
		_, err = client.ClearArchived(ctx, "reset:5", receipts)
		require.NoError(t, err)
		wg.Wait()

		for i := 0; i < 10; i++ {
			got, err := client.Score(ctx, fmt.Sprintf("e%d", i))
			require.NoError(t, err)
			assert.Equal(t, int64(7), got)
		}
	})
}

func TestDeleteEntity(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	_, err := client.Increment(ctx, "gone", 12)
	require.NoError(t, err)
	_, err = client.RecordActivity(ctx, "gone", mustTime(t, "2025-01-01T00:00:00Z"), 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, client.DeleteEntity(ctx, "gone"))

	score, err := client.Score(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, int64(0), score)

	_, err = client.LastActivity(ctx, "gone")
	assert.True(t, IsNotFound(err))
	assert.False(t, mr.Exists(BurstKey("test-instance", "gone")))

	require.NoError(t, client.DeleteScore(ctx, "never-existed"))
}
