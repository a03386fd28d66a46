package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pooldemo/internal/db"
)

const healthPingTimeout = 2 * time.Second

// Store is what the handlers read from.
type Store interface {
	ListTables(ctx context.Context) ([]db.Table, error)
	Metrics() (db.PoolMetrics, bool)
	Ping(ctx context.Context) error
}

var errNoPool = errors.New("no database pool configured")

// PoolStore serves Store from a pgx pool.
type PoolStore struct {
	Pool *pgxpool.Pool
}

func (s *PoolStore) ListTables(ctx context.Context) ([]db.Table, error) {
	if s.Pool == nil {
		return nil, errNoPool
	}
	return db.ListTables(ctx, s.Pool)
}

func (s *PoolStore) Metrics() (db.PoolMetrics, bool) {
	return db.Metrics(s.Pool)
}

func (s *PoolStore) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return errNoPool
	}
	return s.Pool.Ping(ctx)
}

// WarmState reports whether the startup warmup has finished.
type WarmState interface {
	Warm() bool
}

type Options struct {
	Log        *zap.Logger
	Warm       WarmState
	JWTSecret  string
	CORSOrigin string
}

type Server struct {
	R     *gin.Engine
	Store Store
	Warm  WarmState
	Now   func() time.Time
	log   *zap.Logger
}

func NewServer(store Store, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), CallLogger(log))
	if opts.CORSOrigin != "" {
		r.Use(CORS(opts.CORSOrigin))
	}

	s := &Server{R: r, Store: store, Warm: opts.Warm, Now: time.Now, log: log}

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPoolCollector(store.Metrics))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	read := r.Group("", AuthRequired(opts.JWTSecret))
	{
		read.GET("/tables", s.listTables)
		read.GET("/pool", s.poolStats)
	}

	return s
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	warm := s.Warm != nil && s.Warm.Warm()
	if err := s.Store.Ping(ctx); err != nil {
		s.log.Warn("health ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "time": s.Now().UTC(), "warm": warm, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": s.Now().UTC(), "warm": warm})
}

func (s *Server) listTables(c *gin.Context) {
	tables, err := s.Store.ListTables(c.Request.Context())
	if err != nil {
		s.log.Error("listing tables", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, tables)
}

func (s *Server) poolStats(c *gin.Context) {
	m, ok := s.Store.Metrics()
	if !ok {
		c.String(http.StatusOK, db.NoMetrics)
		return
	}
	c.String(http.StatusOK, "%s", m.Text())
}
