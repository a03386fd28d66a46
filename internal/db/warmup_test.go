package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakePool counts how many connections are held at once.
type fakePool struct {
	mu       sync.Mutex
	held     int
	peak     int
	released int
	failAt   int32
	calls    atomic.Int32
}

func (p *fakePool) acquire(ctx context.Context) (func(), error) {
	if n := p.calls.Add(1); p.failAt > 0 && n == p.failAt {
		return nil, errors.New("connection refused")
	}
	p.mu.Lock()
	p.held++
	if p.held > p.peak {
		p.peak = p.held
	}
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.held--
		p.released++
		p.mu.Unlock()
	}, nil
}

func TestWarmupHoldsAllConnections(t *testing.T) {
	p := &fakePool{}
	n, err := warmup(context.Background(), 10, p.acquire)
	require.NoError(t, err)

	assert.Equal(t, 10, n)
	assert.Equal(t, 10, p.peak)
	assert.Equal(t, 10, p.released)
	assert.Equal(t, 0, p.held)
}

func TestWarmupNothingToDo(t *testing.T) {
	p := &fakePool{}
	n, err := warmup(context.Background(), 0, p.acquire)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, p.calls.Load())
}

func TestWarmupReleasesOnError(t *testing.T) {
	p := &fakePool{failAt: 3}
	n, err := warmup(context.Background(), 5, p.acquire)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, 4, n)
	assert.Equal(t, 0, p.held)
	assert.Equal(t, 4, p.released)
}

func TestWarmerRunsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var calls atomic.Int32
	w := newWarmer(3, zap.New(core), func(ctx context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})
	assert.False(t, w.Done())

	require.NoError(t, w.Run(context.Background()))
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, w.Done())
	assert.True(t, w.Warm())
	assert.Equal(t, 3, w.Warmed())

	hot := logs.FilterMessage("Pool is hot, welcome!")
	require.Equal(t, 1, hot.Len())
	assert.Equal(t, zapcore.DebugLevel, hot.All()[0].Level)
}

func TestWarmerFailureKeepsServing(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := newWarmer(3, zap.New(core), func(ctx context.Context, n int) (int, error) {
		return 1, errors.New("boom")
	})

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, w.Done())
	assert.False(t, w.Warm())
	assert.Equal(t, 1, w.Warmed())
	assert.EqualError(t, w.Err(), "boom")
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestWarmerStart(t *testing.T) {
	w := newWarmer(2, nil, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})
	w.Start(context.Background())
	assert.Eventually(t, w.Warm, time.Second, 5*time.Millisecond)
}

func TestWarmupRealPoolUnreachable(t *testing.T) {
	pool, err := NewPool(context.Background(), PoolConfig{DatabaseURL: "postgres://app@127.0.0.1:1/app?connect_timeout=1", MaxConns: 2})
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := Warmup(ctx, pool, 5)
	require.Error(t, err)
	assert.Zero(t, n)
}
