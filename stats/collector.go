package stats

import (
	"context"
	"sync"
	"time"
)

const windowSize = 60

// Collector collects real-time download statistics with 1 Hz sampling.
// It maintains a 60-second sliding window of received bytes and notifies
// registered consumers on each tick.
//
// Thread-safe for concurrent access from download workers and the
// sampling goroutine.
type Collector struct {
	mu            sync.RWMutex
	topInfo       TopInfo
	byteBuckets   [windowSize]int64 // Ring buffer of 1-second byte counts
	currentBucket int
	bucketStart   time.Time
	startTime     time.Time
	ticker        *time.Ticker
	consumers     []StatsConsumer
	throttler     *WorkerThrottler
	sampler       SystemSampler
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewCollector creates a Collector and starts the 1 Hz sampling loop. The
// throttler may be nil, in which case DynMaxWorkers stays at maxWorkers.
// The collector runs until Close() is called or ctx is cancelled.
func NewCollector(ctx context.Context, maxWorkers int, throttler *WorkerThrottler) *Collector {
	c := newCollector(ctx, maxWorkers, throttler, SampleSystem)
	c.ticker = time.NewTicker(time.Second)

	c.wg.Add(1)
	go c.run()

	return c
}

// newCollector builds a collector without starting the loop.
func newCollector(ctx context.Context, maxWorkers int, throttler *WorkerThrottler, sampler SystemSampler) *Collector {
	collectorCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	dynMax := maxWorkers
	ramping := false
	if throttler != nil {
		dynMax = throttler.Initial()
		ramping = throttler.Ramping()
	}

	return &Collector{
		topInfo: TopInfo{
			MaxWorkers:    maxWorkers,
			DynMaxWorkers: dynMax,
			Ramping:       ramping,
			StartTime:     now,
		},
		bucketStart: now,
		startTime:   now,
		throttler:   throttler,
		sampler:     sampler,
		ctx:         collectorCtx,
		cancel:      cancel,
	}
}

// RecordBytes adds n received bytes to the current bucket and the total.
func (c *Collector) RecordBytes(n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advanceBucketLocked(time.Now())
	c.byteBuckets[c.currentBucket] += n
	c.topInfo.Bytes += n
}

// RecordCompletion records the outcome of one URL.
func (c *Collector) RecordCompletion(status DownloadStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch status {
	case DownloadSuccess:
		c.topInfo.Done++
	case DownloadFailed:
		c.topInfo.Failed++
	case DownloadSkipped:
		c.topInfo.Skipped++
	}
	c.updateRemainingLocked()
}

// UpdateWorkerCount updates the active worker count.
func (c *Collector) UpdateWorkerCount(active int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topInfo.ActiveWorkers = active
}

// UpdateQueuedCount updates the total queued URL count.
func (c *Collector) UpdateQueuedCount(queued int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topInfo.Queued = queued
	c.updateRemainingLocked()
}

// GetSnapshot returns a thread-safe copy of the current TopInfo.
func (c *Collector) GetSnapshot() TopInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topInfo
}

// AddConsumer registers a stats consumer to receive updates on each tick.
// Consumers are notified in registration order.
func (c *Collector) AddConsumer(consumer StatsConsumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumers = append(c.consumers, consumer)
}

// Close stops the sampling loop and waits for cleanup.
func (c *Collector) Close() error {
	c.cancel()
	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.wg.Wait()
	return nil
}

func (c *Collector) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ticker.C:
			c.tick()
		case <-c.ctx.Done():
			return
		}
	}
}

// tick performs a single sampling iteration.
func (c *Collector) tick() {
	now := time.Now()

	// Sampling may block briefly; keep it outside the lock.
	var load float64
	var swap int
	if c.sampler != nil {
		load, swap = c.sampler()
	}

	c.mu.Lock()

	c.advanceBucketLocked(now)

	c.topInfo.Elapsed = now.Sub(c.startTime)
	c.topInfo.BytesPerSec = c.calculateRateLocked()

	prevBucket := (c.currentBucket + windowSize - 1) % windowSize
	c.topInfo.Impulse = float64(c.byteBuckets[prevBucket])

	c.topInfo.Load = load
	c.topInfo.SwapPct = swap
	if c.throttler != nil {
		c.topInfo.DynMaxWorkers = c.throttler.Next(load, swap)
		c.topInfo.Ramping = c.throttler.Ramping()
	}

	c.updateRemainingLocked()

	snapshot := c.topInfo
	consumers := append([]StatsConsumer(nil), c.consumers...)

	c.mu.Unlock()

	// Notify consumers outside the lock; they may call back into the
	// collector.
	for _, consumer := range consumers {
		consumer.OnStatsUpdate(snapshot)
	}
}

func (c *Collector) updateRemainingLocked() {
	c.topInfo.Remaining = c.topInfo.Queued - (c.topInfo.Done + c.topInfo.Failed + c.topInfo.Skipped)
	if c.topInfo.Remaining < 0 {
		c.topInfo.Remaining = 0
	}
}

// advanceBucketLocked advances the bucket index, handling multi-second gaps.
func (c *Collector) advanceBucketLocked(now time.Time) {
	elapsed := now.Sub(c.bucketStart)
	if elapsed >= windowSize*time.Second {
		// Whole window expired.
		c.byteBuckets = [windowSize]int64{}
		skip := int(elapsed / time.Second)
		c.currentBucket = (c.currentBucket + skip) % windowSize
		c.bucketStart = c.bucketStart.Add(time.Duration(skip) * time.Second)
		return
	}

	for elapsed >= time.Second {
		c.currentBucket = (c.currentBucket + 1) % windowSize
		c.byteBuckets[c.currentBucket] = 0
		c.bucketStart = c.bucketStart.Add(time.Second)
		elapsed = now.Sub(c.bucketStart)
	}
}

// calculateRateLocked returns bytes/sec averaged over the window, or over
// the elapsed time while the window is not yet full.
func (c *Collector) calculateRateLocked() float64 {
	var sum int64
	for _, n := range c.byteBuckets {
		sum += n
	}

	secs := c.topInfo.Elapsed.Seconds()
	if secs > windowSize {
		secs = windowSize
	}
	if secs < 1 {
		secs = 1
	}
	return float64(sum) / secs
}
