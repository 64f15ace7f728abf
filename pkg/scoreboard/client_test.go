package scoreboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
		assert.Equal(t, DefaultReceiptRetention, client.receiptRetention)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	assert.NoError(t, client.Ping(ctx))

	mr.Close()
	assert.Error(t, client.Ping(ctx))
}

func TestSetReceiptRetention(t *testing.T) {
	client, _ := setupTestClient(t)

	client.SetReceiptRetention(time.Hour)
	assert.Equal(t, time.Hour, client.receiptRetention)

	client.SetReceiptRetention(0)
	assert.Equal(t, time.Hour, client.receiptRetention, "non-positive values are ignored")
}

func TestMarkOnce(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	first, err := client.MarkOnce(ctx, "groups:100", "announce")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := client.MarkOnce(ctx, "groups:100", "announce")
	require.NoError(t, err)
	assert.False(t, second)

	other, err := client.MarkOnce(ctx, "groups:200", "announce")
	require.NoError(t, err)
	assert.True(t, other, "different invocation gets its own marker")

	assert.True(t, mr.Exists(OnceKey("test-instance", "groups:100", "announce")))

	require.NoError(t, client.UnmarkOnce(ctx, "groups:100", "announce"))
	again, err := client.MarkOnce(ctx, "groups:100", "announce")
	require.NoError(t, err)
	assert.True(t, again)

	_, err = client.MarkOnce(ctx, "", "announce")
	assert.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(redis.Nil))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(assert.AnError))
}
