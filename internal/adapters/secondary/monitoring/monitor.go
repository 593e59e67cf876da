// Package monitoring keeps runtime and pipeline counters for the
// preview server's health endpoint.
package monitoring

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

const (
	sampleInterval = 30 * time.Second

	// weight of the newest sample in the moving averages
	emaAlpha = 0.1

	maxMemoryBytes = int64(500 * 1024 * 1024)
	maxGoroutines  = 1000
)

// Metrics is a point-in-time copy of the collected measurements
type Metrics struct {
	StartTime  time.Time
	LastSample time.Time

	MemoryUsage    int64
	HeapSize       int64
	StackSize      int64
	GoroutineCount int
	GCCount        uint32

	DiagramRenders     int64
	DiagramFailures    int64
	AverageDiagramTime time.Duration

	Exports           int64
	ExportFailures    int64
	AverageExportTime time.Duration

	HTTPRequests         int64
	WebSocketConnections int64
}

// EngineStats is what the diagram engine reports about itself
type EngineStats interface {
	CacheStats() entities.CacheStats
	Active() int
}

// Monitor collects counters from the pipeline and samples the runtime
// on a fixed interval while started
type Monitor struct {
	metrics Metrics
	engine  EngineStats
	mu      sync.RWMutex

	runMu   sync.Mutex
	ticker  *time.Ticker
	stopCh  chan struct{}
	running bool
}

// NewMonitor creates a monitor. engine may be nil.
func NewMonitor(engine EngineStats) *Monitor {
	m := &Monitor{engine: engine}
	m.metrics.StartTime = time.Now()
	m.sample()
	return m
}

// Start begins periodic runtime sampling until ctx ends or Stop is called
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.ticker = time.NewTicker(sampleInterval)
	m.stopCh = make(chan struct{})

	go m.loop(ctx, m.ticker, m.stopCh)
}

// Stop ends sampling; it is safe to call when not started
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.ticker.Stop()
	close(m.stopCh)
}

func (m *Monitor) loop(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.MemoryUsage = safeUint64ToInt64(mem.Alloc)
	m.metrics.HeapSize = safeUint64ToInt64(mem.HeapAlloc)
	m.metrics.StackSize = safeUint64ToInt64(mem.StackInuse)
	m.metrics.GoroutineCount = runtime.NumGoroutine()
	m.metrics.GCCount = mem.NumGC
	m.metrics.LastSample = time.Now()
}

// RecordDiagramRender records one engine call
func (m *Monitor) RecordDiagramRender(d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.DiagramRenders++
	if err != nil {
		m.metrics.DiagramFailures++
	}
	m.metrics.AverageDiagramTime = movingAverage(m.metrics.AverageDiagramTime, d)
}

// RecordExport records one document export
func (m *Monitor) RecordExport(d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.Exports++
	if err != nil {
		m.metrics.ExportFailures++
	}
	m.metrics.AverageExportTime = movingAverage(m.metrics.AverageExportTime, d)
}

// RecordHTTPRequest counts one served request
func (m *Monitor) RecordHTTPRequest() {
	m.mu.Lock()
	m.metrics.HTTPRequests++
	m.mu.Unlock()
}

// RecordWebSocketConnection counts one accepted websocket
func (m *Monitor) RecordWebSocketConnection() {
	m.mu.Lock()
	m.metrics.WebSocketConnections++
	m.mu.Unlock()
}

// Metrics returns a copy of the current measurements
func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Uptime returns the time since the monitor was created
func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.Metrics().StartTime)
}

// IsHealthy reports whether memory and goroutine counts are within bounds
func (m *Monitor) IsHealthy() bool {
	metrics := m.Metrics()
	return metrics.MemoryUsage < maxMemoryBytes && metrics.GoroutineCount < maxGoroutines
}

// HealthStatus is the health endpoint body
func (m *Monitor) HealthStatus() map[string]interface{} {
	metrics := m.Metrics()

	status := map[string]interface{}{
		"healthy":    m.IsHealthy(),
		"uptime":     time.Since(metrics.StartTime).Round(time.Second).String(),
		"memory_mb":  metrics.MemoryUsage / (1024 * 1024),
		"heap_mb":    metrics.HeapSize / (1024 * 1024),
		"goroutines": metrics.GoroutineCount,
		"gc_cycles":  metrics.GCCount,
		"operations": map[string]interface{}{
			"diagram_renders":       metrics.DiagramRenders,
			"diagram_failures":      metrics.DiagramFailures,
			"exports":               metrics.Exports,
			"export_failures":       metrics.ExportFailures,
			"http_requests":         metrics.HTTPRequests,
			"websocket_connections": metrics.WebSocketConnections,
		},
		"performance": map[string]interface{}{
			"avg_diagram_time_ms": metrics.AverageDiagramTime.Milliseconds(),
			"avg_export_time_ms":  metrics.AverageExportTime.Milliseconds(),
		},
	}
	if m.engine != nil {
		status["diagram_engine"] = map[string]interface{}{
			"active": m.engine.Active(),
			"cache":  m.engine.CacheStats(),
		}
	}
	return status
}

// Instrument wraps engine so every render is recorded
func (m *Monitor) Instrument(engine ports.DiagramEngine) ports.DiagramEngine {
	return &instrumentedEngine{next: engine, monitor: m}
}

type instrumentedEngine struct {
	next    ports.DiagramEngine
	monitor *Monitor
}

func (e *instrumentedEngine) Render(ctx context.Context, id, source string, theme entities.Theme) (string, error) {
	start := time.Now()
	svg, err := e.next.Render(ctx, id, source, theme)
	e.monitor.RecordDiagramRender(time.Since(start), err)
	return svg, err
}

func movingAverage(avg, sample time.Duration) time.Duration {
	if avg == 0 {
		return sample
	}
	return time.Duration(float64(avg)*(1-emaAlpha) + float64(sample)*emaAlpha)
}

// safeUint64ToInt64 caps val at math.MaxInt64
func safeUint64ToInt64(val uint64) int64 {
	if val > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(val)
}
