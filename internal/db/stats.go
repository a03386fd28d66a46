package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NoMetrics is what the pool endpoint shows when there is no pool to report on.
const NoMetrics = "NO METRICS"

// PoolMetrics is a point-in-time copy of the pool counters.
type PoolMetrics struct {
	MaxSize              int32
	AcquiredSize         int32
	IdleSize             int32
	AllocatedSize        int32
	ConstructingSize     int32
	AcquireCount         int64
	EmptyAcquireCount    int64
	CanceledAcquireCount int64
	NewConnsCount        int64
	MaxIdleDestroyCount  int64
	AcquireDuration      time.Duration
}

// Metrics snapshots pool. ok is false when pool is nil.
func Metrics(pool *pgxpool.Pool) (m PoolMetrics, ok bool) {
	if pool == nil {
		return PoolMetrics{}, false
	}
	return metricsFromStat(pool.Stat()), true
}

func metricsFromStat(s *pgxpool.Stat) PoolMetrics {
	return PoolMetrics{
		MaxSize:              s.MaxConns(),
		AcquiredSize:         s.AcquiredConns(),
		IdleSize:             s.IdleConns(),
		AllocatedSize:        s.TotalConns(),
		ConstructingSize:     s.ConstructingConns(),
		AcquireCount:         s.AcquireCount(),
		EmptyAcquireCount:    s.EmptyAcquireCount(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
		NewConnsCount:        s.NewConnsCount(),
		MaxIdleDestroyCount:  s.MaxIdleDestroyCount(),
		AcquireDuration:      s.AcquireDuration(),
	}
}

// Text renders m as aligned "label: value" lines.
func (m PoolMetrics) Text() string {
	lines := []struct {
		label string
		value any
	}{
		{"Max allocated size", m.MaxSize},
		{"Acquired size", m.AcquiredSize},
		{"Idle size", m.IdleSize},
		{"Allocated size", m.AllocatedSize},
		{"Pending (constructing) size", m.ConstructingSize},
		{"Acquire count", m.AcquireCount},
		{"Empty acquire count", m.EmptyAcquireCount},
		{"Canceled acquire count", m.CanceledAcquireCount},
		{"New connections", m.NewConnsCount},
		{"Idle destroyed", m.MaxIdleDestroyCount},
		{"Acquire duration", m.AcquireDuration},
	}

	width := 0
	for _, l := range lines {
		if len(l.label) > width {
			width = len(l.label)
		}
	}
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%-*s : %v\n", width, l.label, l.value)
	}
	return b.String()
}
