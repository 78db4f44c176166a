package psstore

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/sizestr"
)

// opMetrics accumulates timings and counters for one named operation
// (Store records only "put" and "get"), atomically, so readers may
// observe a slightly stale total but never a torn record — the same
// lock-free-observable discipline the teacher's ConnStats uses for its
// open/total connection counters.
type opMetrics struct {
	calls          int64
	totalNanos     int64
	connectorNanos int64
	serializeNanos int64
	cacheHits      int64
	cacheMisses    int64
	totalBytes     int64
}

func (m *opMetrics) recordTotal(d time.Duration)      { atomic.AddInt64(&m.totalNanos, int64(d)) }
func (m *opMetrics) recordConnector(d time.Duration)  { atomic.AddInt64(&m.connectorNanos, int64(d)) }
func (m *opMetrics) recordSerialize(d time.Duration)  { atomic.AddInt64(&m.serializeNanos, int64(d)) }
func (m *opMetrics) recordCall()                      { atomic.AddInt64(&m.calls, 1) }
func (m *opMetrics) recordCacheHit()                  { atomic.AddInt64(&m.cacheHits, 1) }
func (m *opMetrics) recordCacheMiss()                 { atomic.AddInt64(&m.cacheMisses, 1) }
func (m *opMetrics) recordBytes(n int)                { atomic.AddInt64(&m.totalBytes, int64(n)) }

// Snapshot is a point-in-time, human-readable rendering of one operation's
// accumulated metrics.
type Snapshot struct {
	Calls          int64
	TotalTime      time.Duration
	ConnectorTime  time.Duration
	SerializeTime  time.Duration
	CacheHits      int64
	CacheMisses    int64
	TotalBytes     int64
	TotalBytesText string
}

func (m *opMetrics) snapshot() Snapshot {
	total := atomic.LoadInt64(&m.totalBytes)
	return Snapshot{
		Calls:          atomic.LoadInt64(&m.calls),
		TotalTime:      time.Duration(atomic.LoadInt64(&m.totalNanos)),
		ConnectorTime:  time.Duration(atomic.LoadInt64(&m.connectorNanos)),
		SerializeTime:  time.Duration(atomic.LoadInt64(&m.serializeNanos)),
		CacheHits:      atomic.LoadInt64(&m.cacheHits),
		CacheMisses:    atomic.LoadInt64(&m.cacheMisses),
		TotalBytes:     total,
		TotalBytesText: sizestr.ToString(total),
	}
}

// Metrics is a Store's optional per-operation metrics, keyed by operation
// name. Disabled by default (spec §4.3).
type Metrics struct {
	mu   sync.RWMutex
	ops  map[string]*opMetrics
}

func newMetrics() *Metrics {
	return &Metrics{ops: make(map[string]*opMetrics)}
}

func (m *Metrics) op(name string) *opMetrics {
	m.mu.RLock()
	op, ok := m.ops[name]
	m.mu.RUnlock()
	if ok {
		return op
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok := m.ops[name]; ok {
		return op
	}
	op = &opMetrics{}
	m.ops[name] = op
	return op
}

// Snapshot returns the current metrics for the named operation, or the
// zero Snapshot if that operation has never been recorded.
func (m *Metrics) Snapshot(name string) Snapshot {
	m.mu.RLock()
	op, ok := m.ops[name]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}
	}
	return op.snapshot()
}

// String renders every recorded operation's snapshot, for log lines.
func (m *Metrics) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := ""
	for name, op := range m.ops {
		s := op.snapshot()
		out += fmt.Sprintf("%s: calls=%d total=%s bytes=%s hit=%d miss=%d\n",
			name, s.Calls, s.TotalTime, s.TotalBytesText, s.CacheHits, s.CacheMisses)
	}
	return out
}
