package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"uniconverter/internal/logging"
)

// StatsProvider reports what the artifact ledger currently holds.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Stats is a snapshot of the artifact ledger.
type Stats struct {
	ByCategory map[string]int
	TotalBytes int64
	// Oldest is the creation time of the oldest artifact, zero when empty.
	Oldest time.Time
}

// Collector refreshes the ledger gauges on an interval.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	now      func() time.Time

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCollector creates a collector for provider. A nil provider makes the
// collector a no-op.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start collects once and then on every tick until Stop.
func (c *Collector) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		c.collect()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends collection and waits for an in-flight collection to finish.
// It is safe to call more than once, and before Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.provider.Stats(ctx)
	if err != nil {
		logging.Warn("Ledger stats collection failed: %v", err)
		return
	}

	ArtifactsStored.Reset()
	for category, count := range stats.ByCategory {
		ArtifactsStored.WithLabelValues(category).Set(float64(count))
	}
	ArtifactBytesStored.Set(float64(stats.TotalBytes))

	age := 0.0
	if !stats.Oldest.IsZero() {
		age = c.now().Sub(stats.Oldest).Seconds()
	}
	ArtifactOldestAgeSeconds.Set(age)

	logging.Debug("Ledger stats: categories=%d bytes=%d oldest=%.0fs", len(stats.ByCategory), stats.TotalBytes, age)
}
