package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/standings/pkg/scoreboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *scoreboard.Client {
	mr := miniredis.RunT(t)
	client, err := scoreboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func seed(t *testing.T, store *scoreboard.Client, scores map[string]int64, active map[string]time.Time) {
	ctx := context.Background()
	for id, s := range scores {
		_, err := store.Increment(ctx, id, s)
		require.NoError(t, err)
	}
	for id, at := range active {
		_, err := store.RecordActivity(ctx, id, at, time.Minute)
		require.NoError(t, err)
	}
}

func TestListScores(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store - default format", func(t *testing.T) {
		store := setupStore(t)

		var buf bytes.Buffer
		err := ListScores(ctx, store, "test-instance", 0, OutputFormatDefault, nil, &buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "No scores found for instance 'test-instance'")
	})

	t.Run("table lists ranked entities", func(t *testing.T) {
		store := setupStore(t)
		seed(t, store, map[string]int64{"alice": 30, "bob": 12, "carol": 30}, map[string]time.Time{
			"alice": time.Now().Add(-2 * time.Hour),
		})

		var buf bytes.Buffer
		err := ListScores(ctx, store, "test-instance", 0, OutputFormatDefault, nil, &buf)
		require.NoError(t, err)

		output := buf.String()
		lines := strings.Split(output, "\n")
		require.GreaterOrEqual(t, len(lines), 7)
		assert.Contains(t, lines[4], "#1")
		assert.Contains(t, lines[4], "alice")
		assert.Contains(t, lines[4], "2h ago")
		assert.Contains(t, lines[5], "carol")
		assert.Contains(t, lines[6], "bob")
		assert.Contains(t, output, "3 entities found")
	})

	t.Run("jsonl output with filters", func(t *testing.T) {
		store := setupStore(t)
		now := time.Now()
		seed(t, store, map[string]int64{"team-a:1": 40, "team-a:2": 5, "team-b:1": 50}, map[string]time.Time{
			"team-a:1": now.Add(-time.Minute),
			"team-a:2": now.Add(-time.Minute),
			"team-b:1": now.Add(-48 * time.Hour),
		})

		var buf bytes.Buffer
		filters := &FilterCriteria{IDGlob: "team-a:*", MinScore: 10, ActiveSinceMs: now.Add(-time.Hour).UnixMilli()}
		err := ListScores(ctx, store, "test-instance", 0, OutputFormatJSONL, filters, &buf)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)

		var row Row
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
		assert.Equal(t, "team-a:1", row.EntityID)
		assert.Equal(t, 2, row.Rank, "rank is the position in the full ranking")
		assert.Equal(t, int64(40), row.Score)
	})

	t.Run("top k limits the listing", func(t *testing.T) {
		store := setupStore(t)
		seed(t, store, map[string]int64{"a": 3, "b": 2, "c": 1}, nil)

		var buf bytes.Buffer
		err := ListScores(ctx, store, "test-instance", 2, OutputFormatJSONL, nil, &buf)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 2)
	})

	t.Run("unknown format", func(t *testing.T) {
		store := setupStore(t)
		err := ListScores(ctx, store, "test-instance", 0, "xml", nil, &bytes.Buffer{})
		assert.Error(t, err)
	})
}

func TestGetEntity(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	active := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	seed(t, store, map[string]int64{"alice": 9, "bob": 20}, map[string]time.Time{"alice": active, "idle": active})

	t.Run("scored entity", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetEntity(ctx, store, "alice", &buf))

		var d Detail
		require.NoError(t, json.Unmarshal(buf.Bytes(), &d))
		assert.Equal(t, int64(9), d.Score)
		assert.Equal(t, 2, d.Rank)
		require.NotNil(t, d.LastActiveAt)
		assert.True(t, d.LastActiveAt.Equal(active))
	})

	t.Run("active but unscored entity", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetEntity(ctx, store, "idle", &buf))
		assert.Contains(t, buf.String(), `"score": 0`)
	})

	t.Run("unknown entity", func(t *testing.T) {
		err := GetEntity(ctx, store, "nobody", &bytes.Buffer{})
		assert.True(t, IsNotFound(err))
	})
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago      time.Duration
		expected string
	}{
		{30 * time.Second, "30s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatTimestamp(now.Add(-tt.ago).UnixMilli(), now))
	}
	assert.Equal(t, "-", formatTimestamp(0, now))
}

func TestFormatEntityID(t *testing.T) {
	assert.Equal(t, "short", formatEntityID("short"))
	assert.Equal(t, "123456789012345678901...", formatEntityID("1234567890123456789012345"))
}
