package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

// Metrics holds Prometheus metric descriptors for the program host.
// Each Metrics owns its registry so several games can coexist in one process.
type Metrics struct {
	game      *Game
	startTime time.Time
	registry  *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runSteps        prometheus.Histogram
	runDuration     prometheus.Histogram
	compilesTotal   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	activeRuns      prometheus.Gauge
	objectsTotal    prometheus.Gauge
	programsCached  prometheus.Gauge
	sessionsOpen    prometheus.Gauge
	uptimeSeconds   prometheus.Gauge
	memoryHeapBytes prometheus.Gauge
	goroutines      prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomuck_program_runs_total",
			Help: "Program runs by outcome (OK or the error kind).",
		}, []string{"outcome"}),
		runSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gomuck_program_run_steps",
			Help:    "Datums executed per run.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 9),
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gomuck_program_run_seconds",
			Help:    "Wall-clock time per run.",
			Buckets: prometheus.DefBuckets,
		}),
		compilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomuck_program_compiles_total",
			Help: "Program compilations by result.",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomuck_program_cache_lookups_total",
			Help: "Compiled-program cache lookups by result.",
		}, []string{"result"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuck_program_runs_active",
			Help: "Runs currently holding program-local scopes.",
		}),
		objectsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuck_objects_total",
			Help: "Total number of objects in the database.",
		}),
		programsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuck_programs_cached",
			Help: "Compiled programs held in the cache.",
		}),
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuck_sessions_open",
			Help: "Number of open player sessions.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuck_uptime_seconds",
			Help: "Host uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuck_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuck_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.runSteps,
		m.runDuration,
		m.compilesTotal,
		m.cacheLookups,
		m.activeRuns,
		m.objectsTotal,
		m.programsCached,
		m.sessionsOpen,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(r muf.Result, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(r.Kind.String()).Inc()
	m.runSteps.Observe(float64(r.Steps))
	m.runDuration.Observe(elapsed.Seconds())
}

// ObserveCompile records one compilation.
func (m *Metrics) ObserveCompile(r muf.Result) {
	if r.Successful() {
		m.compilesTotal.WithLabelValues("ok").Inc()
		return
	}
	m.compilesTotal.WithLabelValues("error").Inc()
}

// ObserveCache records a compiled-program cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	st := m.game.Stats()
	m.objectsTotal.Set(float64(st.Objects))
	m.programsCached.Set(float64(st.Cached))
	m.sessionsOpen.Set(float64(st.Sessions))
	m.activeRuns.Set(float64(st.ActiveRuns))

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}
