package sync

import (
	"sync"
	"time"
)

// SyncStats are the aggregate counters of one run
type SyncStats struct {
	TotalEntries     int       `json:"totalEntries"`
	ProcessedEntries int       `json:"processedEntries"`
	TotalGrants      int       `json:"totalGrants"`
	ProcessedGrants  int       `json:"processedGrants"`
	Created          int       `json:"created"`
	Updated          int       `json:"updated"`
	Skipped          int       `json:"skipped"`
	PrunedEntries    int       `json:"prunedEntries"`
	PrunedGrants     int       `json:"prunedGrants"`
	ErrorCount       int       `json:"errorCount"`
	StartedAt        time.Time `json:"startedAt"`
	Duration         string    `json:"duration,omitempty"`
}

// runCounters guards SyncStats for one run. The run goroutine is the only
// writer; readers may snapshot concurrently through the run handle.
type runCounters struct {
	mu    sync.Mutex
	stats SyncStats
}

func newRunCounters() *runCounters {
	return &runCounters{
		stats: SyncStats{StartedAt: time.Now()},
	}
}

func (c *runCounters) update(fn func(stats *SyncStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}

func (c *runCounters) snapshot() SyncStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Duration = time.Since(stats.StartedAt).Round(time.Millisecond).String()
	return stats
}
