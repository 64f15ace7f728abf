package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_Resolve(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/entities/u1":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(DisplayInfo{EntityID: "u1", DisplayName: "Ada", GroupID: "A"})
		case "/entities/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/entities/left":
			w.WriteHeader(http.StatusGone)
		case "/entities/slow":
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		case "/entities/reset":
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(7*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
		case "/entities/bare":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/entities/bad":
			w.Write([]byte("{not json"))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL+"/", time.Second)
	src.Now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		info, err := src.Resolve(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, DisplayInfo{EntityID: "u1", DisplayName: "Ada", GroupID: "A"}, info)
	})

	t.Run("not found and gone", func(t *testing.T) {
		_, err := src.Resolve(ctx, "gone")
		assert.True(t, IsNotFound(err))
		_, err = src.Resolve(ctx, "left")
		assert.True(t, IsNotFound(err))
	})

	t.Run("retry-after seconds", func(t *testing.T) {
		_, err := src.Resolve(ctx, "slow")
		var rl *RateLimitedError
		require.True(t, errors.As(err, &rl))
		assert.Equal(t, 3*time.Second, rl.RetryAfter)
	})

	t.Run("rate limit reset epoch", func(t *testing.T) {
		_, err := src.Resolve(ctx, "reset")
		var rl *RateLimitedError
		require.True(t, errors.As(err, &rl))
		assert.Equal(t, 7*time.Second, rl.RetryAfter)
	})

	t.Run("429 without hint", func(t *testing.T) {
		_, err := src.Resolve(ctx, "bare")
		var rl *RateLimitedError
		require.True(t, errors.As(err, &rl))
		assert.Equal(t, defaultRetryAfter, rl.RetryAfter)
	})

	t.Run("malformed body is transient", func(t *testing.T) {
		_, err := src.Resolve(ctx, "bad")
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
	})

	t.Run("server error is transient", func(t *testing.T) {
		_, err := src.Resolve(ctx, "other")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
		assert.Contains(t, err.Error(), "upstream down")
	})
}
