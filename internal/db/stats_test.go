package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNoPool(t *testing.T) {
	_, ok := Metrics(nil)
	assert.False(t, ok)
}

func TestMetricsLazyPool(t *testing.T) {
	pool, err := NewPool(context.Background(), PoolConfig{DatabaseURL: "postgres://app@127.0.0.1:1/app"})
	require.NoError(t, err)
	defer pool.Close()

	m, ok := Metrics(pool)
	require.True(t, ok)
	assert.Equal(t, int32(DefaultMaxConns), m.MaxSize)
	assert.Zero(t, m.AllocatedSize)
	assert.Zero(t, m.AcquiredSize)
	assert.Zero(t, m.IdleSize)
}

func TestPoolMetricsText(t *testing.T) {
	m := PoolMetrics{
		MaxSize:         20,
		AcquiredSize:    2,
		IdleSize:        8,
		AllocatedSize:   10,
		AcquireCount:    42,
		AcquireDuration: 1500 * time.Millisecond,
	}
	text := m.Text()
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	require.Len(t, lines, 11)

	assert.Equal(t, "Max allocated size          : 20", lines[0])
	assert.Equal(t, "Acquired size               : 2", lines[1])
	assert.Equal(t, "Idle size                   : 8", lines[2])
	assert.Equal(t, "Allocated size              : 10", lines[3])
	assert.Contains(t, text, "Acquire count               : 42\n")
	assert.Contains(t, text, "Acquire duration            : 1.5s\n")

	// every value column starts at the same offset
	col := strings.Index(lines[0], ":")
	for _, l := range lines {
		assert.Equal(t, col, strings.Index(l, ":"), l)
	}
}
