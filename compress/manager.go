package compress

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config controls per-frame compression, per spec.md §4.2.
type Config struct {
	Threshold    int  // compress frames at or above this size (default 1024)
	MaxSize      int  // never compress frames at or above this size (default 10 MiB)
	PreferBrotli bool // break negotiation ties toward brotli
	Adaptive     bool // adjust Threshold from observed ratio/latency
}

func DefaultConfig() Config {
	return Config{
		Threshold: 1024,
		MaxSize:   10 << 20,
	}
}

// Metrics are the frame/byte/latency/error counters spec.md §4.2 requires,
// registered the way ws/metrics.go registers its Prometheus collectors.
type Metrics struct {
	FramesIn          prometheus.Counter
	FramesOut         prometheus.Counter
	BytesIn           prometheus.Counter
	BytesOut          prometheus.Counter
	WallTime          prometheus.Histogram
	AlgorithmCounters *prometheus.CounterVec
	Errors            prometheus.Counter
}

// NewMetrics builds and registers Metrics on reg. reg may be nil, in which
// case metrics are created but never exposed (useful in tests).
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		FramesIn:  prometheus.NewCounter(prometheus.CounterOpts{Name: "riftdb_compress_frames_in_total"}),
		FramesOut: prometheus.NewCounter(prometheus.CounterOpts{Name: "riftdb_compress_frames_out_total"}),
		BytesIn:   prometheus.NewCounter(prometheus.CounterOpts{Name: "riftdb_compress_bytes_in_total"}),
		BytesOut:  prometheus.NewCounter(prometheus.CounterOpts{Name: "riftdb_compress_bytes_out_total"}),
		WallTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riftdb_compress_wall_seconds",
			Buckets: prometheus.DefBuckets,
		}),
		AlgorithmCounters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riftdb_compress_algorithm_total",
		}, []string{"algorithm"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{Name: "riftdb_compress_errors_total"}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesIn, m.FramesOut, m.BytesIn, m.BytesOut, m.WallTime, m.AlgorithmCounters, m.Errors)
	}
	return m
}

// Manager applies Config to outbound frames and tracks the adaptive
// threshold state spec.md §4.2 describes.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	metrics *Metrics

	// Adaptive state: the ratio and latency of the most recent
	// compression attempt.
	lastRatio   float64
	lastLatency time.Duration
}

func NewManager(cfg Config, metrics *Metrics) *Manager {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Manager{cfg: cfg, metrics: metrics}
}

// CompressForSend applies algorithm if the frame is within [Threshold,
// MaxSize) and compression actually shrinks it; otherwise it returns None
// and the original bytes unmodified, per spec.md §4.2.
func (m *Manager) CompressForSend(frame []byte, algorithm Algorithm) (Algorithm, []byte, error) {
	m.metrics.FramesOut.Inc()
	m.metrics.BytesOut.Add(float64(len(frame)))

	threshold := m.currentThreshold()
	if algorithm == None || len(frame) < threshold || len(frame) >= m.cfg.MaxSize {
		return None, frame, nil
	}

	start := time.Now()
	compressed, err := compressBytes(algorithm, frame)
	elapsed := time.Since(start)
	if err != nil {
		m.metrics.Errors.Inc()
		return None, frame, err
	}
	m.metrics.WallTime.Observe(elapsed.Seconds())

	if len(compressed) >= len(frame) {
		// Not actually smaller: send uncompressed, per spec.md §4.2.
		m.observe(1.0, elapsed)
		return None, frame, nil
	}

	m.metrics.AlgorithmCounters.WithLabelValues(algorithm.String()).Inc()
	ratio := float64(len(compressed)) / float64(len(frame))
	m.observe(ratio, elapsed)
	return algorithm, compressed, nil
}

// DecompressReceived reverses CompressForSend using the algorithm byte
// carried by the received frame.
func (m *Manager) DecompressReceived(algorithm Algorithm, payload []byte) ([]byte, error) {
	m.metrics.FramesIn.Inc()
	m.metrics.BytesIn.Add(float64(len(payload)))
	out, err := decompressBytes(algorithm, payload)
	if err != nil {
		m.metrics.Errors.Inc()
		return nil, err
	}
	return out, nil
}

// observe records the latest ratio/latency sample, replacing the previous
// one, for currentThreshold to consult.
func (m *Manager) observe(ratio float64, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRatio = ratio
	m.lastLatency = latency
}

// currentThreshold implements the adaptive rule from spec.md §4.2: lower
// the threshold when compression is cheap and effective (ratio < 0.7,
// latency < 1ms), raise it when it isn't worth the cost (ratio > 0.9 or
// latency > 10ms).
func (m *Manager) currentThreshold() int {
	if !m.cfg.Adaptive {
		return m.cfg.Threshold
	}
	m.mu.Lock()
	ratio, latency := m.lastRatio, m.lastLatency
	m.mu.Unlock()

	threshold := m.cfg.Threshold
	switch {
	case ratio != 0 && ratio < 0.7 && latency < time.Millisecond:
		threshold = threshold / 2
	case ratio > 0.9 || latency > 10*time.Millisecond:
		threshold = threshold * 2
	}
	if threshold < 64 {
		threshold = 64
	}
	return threshold
}

// ObservedRatio and ObservedLatency expose the adaptive state for tests
// and diagnostics.
func (m *Manager) ObservedRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRatio
}

func (m *Manager) ObservedLatency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLatency
}
