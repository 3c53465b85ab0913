package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"uniconverter/internal/logging"
	"uniconverter/internal/metrics"
)

// Config tunes a Gate.
type Config struct {
	// Limit is the heap budget in bytes. Zero uses the runtime's GOMEMLIMIT.
	Limit int64
	// Resume is the usage fraction below which a closed gate reopens.
	Resume float64
	// Pause is the usage fraction at which the gate closes.
	Pause float64
	// Interval is the sampling period.
	Interval time.Duration
}

// DefaultConfig returns the gate defaults.
func DefaultConfig() Config {
	return Config{
		Resume:   0.7,
		Pause:    0.85,
		Interval: 2 * time.Second,
	}
}

// Gate samples heap usage and holds page and merge workers back while it
// is above the pause mark. A gate without a limit never closes.
type Gate struct {
	config Config
	limit  int64
	read   func() uint64

	mu      sync.RWMutex
	alloc   uint64
	closed  bool
	reopen  chan struct{}
	stop    chan struct{}
	stopped sync.Once
}

// NewGate creates a gate. Call Start to begin sampling.
func NewGate(config Config) *Gate {
	limit := config.Limit
	if limit <= 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit <= 0 {
		logging.Warn("No memory limit configured, worker backpressure disabled")
	}

	return &Gate{
		config: config,
		limit:  limit,
		read:   heapAlloc,
		reopen: make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins periodic sampling.
func (g *Gate) Start() {
	if g.limit <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(g.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sample()
			case <-g.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter.
func (g *Gate) Stop() {
	g.stopped.Do(func() { close(g.stop) })
}

func (g *Gate) sample() {
	alloc := g.read()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.alloc = alloc
	usage := float64(alloc) / float64(g.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case !g.closed && usage >= g.config.Pause:
		logging.Warn("Memory at %.1f%% of limit, holding workers", usage*100)
		g.closed = true
		metrics.MemoryPaused.Set(1)
		go runtime.GC()
	case g.closed && usage < g.config.Resume:
		logging.Info("Memory back to %.1f%% of limit, releasing workers", usage*100)
		g.closed = false
		metrics.MemoryPaused.Set(0)
		close(g.reopen)
		g.reopen = make(chan struct{})
	}
}

// Wait blocks while the gate is closed. It returns ctx's error if the
// request ends first, and nil once the gate reopens or is stopped.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.RLock()
	if !g.closed {
		g.mu.RUnlock()
		return nil
	}
	reopen := g.reopen
	g.mu.RUnlock()

	metrics.MemoryWaitsTotal.Inc()
	select {
	case <-reopen:
		return nil
	case <-g.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Usage returns the last sampled heap allocation as a fraction of the
// limit, or 0 without a limit.
func (g *Gate) Usage() float64 {
	if g.limit <= 0 {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return float64(g.alloc) / float64(g.limit)
}
