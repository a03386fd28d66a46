package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// acquireFunc checks a connection out of the pool and returns its release.
type acquireFunc func(ctx context.Context) (release func(), err error)

// Warmup opens up to n connections by holding n concurrent acquires, then
// hands them back to the pool as idle connections. n is capped at MaxConns.
func Warmup(ctx context.Context, pool *pgxpool.Pool, n int) (int, error) {
	if limit := int(pool.Config().MaxConns); n > limit {
		n = limit
	}
	return warmup(ctx, n, func(ctx context.Context) (func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return conn.Release, nil
	})
}

func warmup(ctx context.Context, n int, acquire acquireFunc) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		releases []func()
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			release, err := acquire(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			releases = append(releases, release)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	// every acquire has returned, nothing else touches releases
	for _, release := range releases {
		release()
	}
	if err != nil {
		return len(releases), fmt.Errorf("Warmup: %w", err)
	}
	return len(releases), nil
}

// Warmer is the startup hook that warms the pool once the server is up.
type Warmer struct {
	log  *zap.Logger
	n    int
	warm func(ctx context.Context, n int) (int, error)

	once   sync.Once
	mu     sync.Mutex
	done   bool
	warmed int
	err    error
}

func NewWarmer(pool *pgxpool.Pool, n int, log *zap.Logger) *Warmer {
	return newWarmer(n, log, func(ctx context.Context, n int) (int, error) {
		return Warmup(ctx, pool, n)
	})
}

func newWarmer(n int, log *zap.Logger, warm func(ctx context.Context, n int) (int, error)) *Warmer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Warmer{log: log, n: n, warm: warm}
}

// Start runs the warmup in the background.
func (w *Warmer) Start(ctx context.Context) {
	go func() { _ = w.Run(ctx) }()
}

// Run warms the pool. Only the first call does any work; later calls return
// the first outcome.
func (w *Warmer) Run(ctx context.Context) error {
	w.once.Do(func() {
		warmed, err := w.warm(ctx, w.n)

		w.mu.Lock()
		w.done, w.warmed, w.err = true, warmed, err
		w.mu.Unlock()

		if err != nil {
			w.log.Warn("pool warmup failed, connections will open on demand",
				zap.Int("warmed", warmed), zap.Error(err))
			return
		}
		w.log.Debug("Pool is hot, welcome!", zap.Int("warmed", warmed))
	})
	return w.Err()
}

// Done reports whether the warmup has finished, successfully or not.
func (w *Warmer) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Warm reports a finished warmup that did not fail.
func (w *Warmer) Warm() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done && w.err == nil
}

// Warmed is the number of connections the warmup opened.
func (w *Warmer) Warmed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.warmed
}

// Err is the warmup failure, nil until Run has failed.
func (w *Warmer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
