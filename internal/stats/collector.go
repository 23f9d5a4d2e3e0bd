package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks sync statistics using lock-free atomic counters.
type Collector struct {
	startTime         time.Time
	sourceEntries     atomic.Int64
	destEntries       atomic.Int64
	entriesFailed     atomic.Int64
	diffEntries       atomic.Int64
	bytesTotal        atomic.Int64
	filesCopied       atomic.Int64
	filesFailed       atomic.Int64
	bytesCopied       atomic.Int64
	dirsCreated       atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64

	// Ring buffer, written only by the presenter's Tick.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	SourceEntries     int64
	DestEntries       int64
	EntriesFailed     int64
	DiffEntries       int64
	BytesTotal        int64
	FilesCopied       int64
	FilesFailed       int64
	BytesCopied       int64
	DirsCreated       int64
	FilesVerified     int64
	FilesVerifyFailed int64
	Elapsed           time.Duration
}

// Failures is the number of per-entry failures of any kind.
func (s Snapshot) Failures() int64 {
	return s.EntriesFailed + s.FilesFailed + s.FilesVerifyFailed
}

func (c *Collector) AddSourceEntries(n int64)     { c.sourceEntries.Add(n) }
func (c *Collector) AddDestEntries(n int64)       { c.destEntries.Add(n) }
func (c *Collector) AddEntriesFailed(n int64)     { c.entriesFailed.Add(n) }
func (c *Collector) AddFilesCopied(n int64)       { c.filesCopied.Add(n) }
func (c *Collector) AddFilesFailed(n int64)       { c.filesFailed.Add(n) }
func (c *Collector) AddBytesCopied(n int64)       { c.bytesCopied.Add(n) }
func (c *Collector) AddDirsCreated(n int64)       { c.dirsCreated.Add(n) }
func (c *Collector) AddFilesVerified(n int64)     { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64) { c.filesVerifyFailed.Add(n) }

// SetDiff records the size of the computed diff (called once per run).
func (c *Collector) SetDiff(entries, bytes int64) {
	c.diffEntries.Store(entries)
	c.bytesTotal.Store(bytes)
}

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		SourceEntries:     c.sourceEntries.Load(),
		DestEntries:       c.destEntries.Load(),
		EntriesFailed:     c.entriesFailed.Load(),
		DiffEntries:       c.diffEntries.Load(),
		BytesTotal:        c.bytesTotal.Load(),
		FilesCopied:       c.filesCopied.Load(),
		FilesFailed:       c.filesFailed.Load(),
		BytesCopied:       c.bytesCopied.Load(),
		DirsCreated:       c.dirsCreated.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	current := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		sum += c.throughput[(c.ringIdx-1-i+ringSize)%ringSize]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time from the rolling speed and the uncopied bytes
// of the diff.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesCopied.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"source=%d dest=%d diff=%d copied=%d dirs=%d failed=%d bytes=%d",
		s.SourceEntries, s.DestEntries, s.DiffEntries, s.FilesCopied,
		s.DirsCreated, s.Failures(), s.BytesCopied,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
