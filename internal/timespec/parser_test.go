package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		spec     string
		expected time.Duration
	}{
		{"20s", 20 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{"1w1d", 8 * 24 * time.Hour},
		{" 120s ", 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseInterval(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseInterval_Invalid(t *testing.T) {
	for _, spec := range []string{"", "d", "7x", "0s", "-5m", "abc", "7d-1h"} {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseInterval(spec)
			assert.Error(t, err)
		})
	}
}

func TestFormatInterval(t *testing.T) {
	assert.Equal(t, "7d", FormatInterval(7*24*time.Hour))
	assert.Equal(t, "1d12h0m0s", FormatInterval(36*time.Hour))
	assert.Equal(t, "20s", FormatInterval(20*time.Second))

	d, err := ParseInterval(FormatInterval(36 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 36*time.Hour, d)
}

func TestParse(t *testing.T) {
	now := time.Date(2025, 10, 29, 13, 0, 0, 0, time.UTC)

	t.Run("RFC3339", func(t *testing.T) {
		got, err := Parse("2025-10-20T00:00:00Z", now)
		require.NoError(t, err)
		assert.True(t, got.Equal(time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("relative days", func(t *testing.T) {
		got, err := Parse("8d", now)
		require.NoError(t, err)
		assert.True(t, got.Equal(now.Add(-8*24*time.Hour)))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Parse("yesterday", now)
		assert.Error(t, err)
		_, err = Parse("", now)
		assert.Error(t, err)
	})
}
