package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chosenoffset/procview/pkg/procview/decode"
	"github.com/chosenoffset/procview/pkg/procview/probe"
)

// Source produces snapshots. *probe.FS implements it.
type Source interface {
	Snapshot(ctx context.Context) (*probe.Snapshot, error)
}

// Sample is the part of a snapshot kept in history.
type Sample struct {
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	MemoryTotal uint64    `json:"memory_total" yaml:"memory_total"` // kB
	MemoryUsed  uint64    `json:"memory_used" yaml:"memory_used"`   // kB
	SwapUsed    uint64    `json:"swap_used" yaml:"swap_used"`       // kB
	Processes   int       `json:"processes" yaml:"processes"`
	Running     int       `json:"running" yaml:"running"`
	RxBytes     uint64    `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes     uint64    `json:"tx_bytes" yaml:"tx_bytes"`
	Uptime      float64   `json:"uptime" yaml:"uptime"`
}

// Summarize reduces a snapshot to a Sample.
func Summarize(s *probe.Snapshot) Sample {
	sample := Sample{Timestamp: s.Timestamp, Processes: len(s.Processes)}
	if m := s.Memory; m != nil {
		sample.MemoryTotal = m.Total
		sample.MemoryUsed = m.Used()
		if m.SwapTotal > m.SwapFree {
			sample.SwapUsed = m.SwapTotal - m.SwapFree
		}
	}
	for i := range s.Processes {
		if s.Processes[i].State == decode.Running {
			sample.Running++
		}
	}
	for _, d := range s.Network {
		if d.RxBytes != nil {
			sample.RxBytes += *d.RxBytes
		}
		if d.TxBytes != nil {
			sample.TxBytes += *d.TxBytes
		}
	}
	if s.Misc != nil && s.Misc.Uptime != nil {
		sample.Uptime = *s.Misc.Uptime
	}
	return sample
}

// Collector takes a snapshot every interval, keeps the latest one and a
// bounded history of samples.
type Collector struct {
	source          Source
	log             *slog.Logger
	mu              sync.RWMutex
	current         *probe.Snapshot
	history         []Sample
	maxHistory      int
	collectInterval time.Duration
	subscribers     []func(*probe.Snapshot)
	stopCh          chan struct{}
	done            chan struct{}
	running         bool
}

func NewCollector(source Source, maxHistory int, collectInterval time.Duration, log *slog.Logger) *Collector {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	if log != nil {
		log = log.With(slog.String("component", "collector"))
	}
	return &Collector{
		source:          source,
		log:             log,
		history:         make([]Sample, 0, maxHistory),
		maxHistory:      maxHistory,
		collectInterval: collectInterval,
	}
}

// Subscribe registers fn to be called with every new snapshot. fn runs on
// the collector goroutine and must not block.
func (c *Collector) Subscribe(fn func(*probe.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Start collects once immediately and then every interval until ctx is
// done or Stop is called. Start is idempotent.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	stopCh, done := c.stopCh, c.done
	c.mu.Unlock()

	go c.collectLoop(ctx, stopCh, done)
}

// Stop halts collection and waits for the loop to exit.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()
	<-done
}

func (c *Collector) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Collector) collectLoop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.collectInterval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			return
		}
	}
}

// Collect takes one snapshot and records it.
func (c *Collector) Collect(ctx context.Context) (*probe.Snapshot, error) {
	start := time.Now()
	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		if c.log != nil {
			c.log.Warn("snapshot failed", slog.Any("error", err))
		}
		return nil, err
	}

	c.mu.Lock()
	c.current = snap
	c.history = append(c.history, Summarize(snap))
	if len(c.history) > c.maxHistory {
		copy(c.history, c.history[1:])
		c.history = c.history[:c.maxHistory]
	}
	subs := make([]func(*probe.Snapshot), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	if c.log != nil {
		c.log.Debug("snapshot collected",
			slog.Int("processes", len(snap.Processes)),
			slog.Int("errors", len(snap.Errors)),
			slog.Duration("elapsed", time.Since(start)))
	}
	for _, fn := range subs {
		fn(snap)
	}
	return snap, nil
}

// GetCurrent returns the latest snapshot, or nil before the first one.
// Snapshots are never modified after collection.
func (c *Collector) GetCurrent() *probe.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Collector) GetHistory() []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := make([]Sample, len(c.history))
	copy(history, c.history)
	return history
}

func (c *Collector) GetHistoryWindow(duration time.Duration) []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := time.Now().Add(-duration)
	result := []Sample{}
	for _, s := range c.history {
		if s.Timestamp.After(cutoff) {
			result = append(result, s)
		}
	}
	return result
}

// GetMemoryUsedTrend returns the change of used memory in kB per minute
// over the window.
func (c *Collector) GetMemoryUsedTrend(duration time.Duration) float64 {
	history := c.GetHistoryWindow(duration)
	if len(history) < 2 {
		return 0
	}

	oldest := history[0]
	newest := history[len(history)-1]
	elapsed := newest.Timestamp.Sub(oldest.Timestamp)
	if elapsed <= 0 {
		return 0
	}

	diff := float64(newest.MemoryUsed) - float64(oldest.MemoryUsed)
	return diff / elapsed.Seconds() * 60
}

func (c *Collector) GetAverageMemoryUsed(duration time.Duration) float64 {
	history := c.GetHistoryWindow(duration)
	if len(history) == 0 {
		return 0
	}

	var sum uint64
	for _, s := range history {
		sum += s.MemoryUsed
	}
	return float64(sum) / float64(len(history))
}

func (c *Collector) GetMaxMemoryUsed(duration time.Duration) uint64 {
	var max uint64
	for _, s := range c.GetHistoryWindow(duration) {
		if s.MemoryUsed > max {
			max = s.MemoryUsed
		}
	}
	return max
}

// GetNetworkRate returns received and transmitted bytes per second between
// the two most recent samples.
func (c *Collector) GetNetworkRate() (rx, tx float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.history)
	if n < 2 {
		return 0, 0
	}
	prev, last := c.history[n-2], c.history[n-1]
	secs := last.Timestamp.Sub(prev.Timestamp).Seconds()
	if secs <= 0 || last.RxBytes < prev.RxBytes || last.TxBytes < prev.TxBytes {
		return 0, 0
	}
	return float64(last.RxBytes-prev.RxBytes) / secs, float64(last.TxBytes-prev.TxBytes) / secs
}
