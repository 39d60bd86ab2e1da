package server

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crystal-mush/arxscript/pkg/events"
)

// Metrics holds Prometheus metric descriptors for the simulation. It
// subscribes to the event bus for counters and reads gauges from the game
// when scraped.
type Metrics struct {
	game      *Game
	startTime time.Time
	registry  *prometheus.Registry
	closed    atomic.Bool

	passesTotal     *prometheus.CounterVec
	deliveriesTotal prometheus.Counter
	faultsTotal     *prometheus.CounterVec
	timerEvents     *prometheus.CounterVec
	reloadsTotal    prometheus.Counter
	instances       prometheus.Gauge
	entities        prometheus.Gauge
	globals         prometheus.Gauge
	timersActive    prometheus.Gauge
	queueDepth      *prometheus.GaugeVec
	tickSeconds     prometheus.Gauge
	gameClock       prometheus.Gauge
	uptimeSeconds   prometheus.Gauge
	memoryHeapBytes prometheus.Gauge
	goroutines      prometheus.Gauge
}

// NewMetrics creates the metrics on their own registry and subscribes them
// to the game's event bus.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arxscript_passes_total",
			Help: "Script execution passes by outcome.",
		}, []string{"result"}),
		deliveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arxscript_events_delivered_total",
			Help: "Script events delivered to a handler.",
		}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arxscript_faults_total",
			Help: "Script warnings and errors by program.",
		}, []string{"kind", "program"}),
		timerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arxscript_timer_events_total",
			Help: "Timer arms, fires and cancellations.",
		}, []string{"action"}),
		reloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arxscript_reloads_total",
			Help: "Script instances reloaded at runtime.",
		}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_instances",
			Help: "Entities with an attached script.",
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_entities",
			Help: "Entities in the world.",
		}),
		globals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_globals",
			Help: "Global script variables in use.",
		}),
		timersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_timers_active",
			Help: "Armed script timers.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arxscript_queue_depth",
			Help: "Current event queue depth by type.",
		}, []string{"queue_type"}),
		tickSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_last_tick_seconds",
			Help: "Wall time spent in the last simulation tick.",
		}),
		gameClock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_game_clock_milliseconds",
			Help: "Game clock.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arxscript_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.passesTotal,
		m.deliveriesTotal,
		m.faultsTotal,
		m.timerEvents,
		m.reloadsTotal,
		m.instances,
		m.entities,
		m.globals,
		m.timersActive,
		m.queueDepth,
		m.tickSeconds,
		m.gameClock,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)
	if game != nil {
		game.Bus.SubscribeGlobal(m)
	}
	return m
}

// Receive implements events.Subscriber.
func (m *Metrics) Receive(ev events.Event) {
	switch ev.Type {
	case events.EvDelivered:
		m.deliveriesTotal.Inc()
	case events.EvPassEnd:
		m.passesTotal.WithLabelValues(ev.Result).Inc()
	case events.EvWarning, events.EvError:
		m.faultsTotal.WithLabelValues(ev.Type.String(), ev.Program).Inc()
	case events.EvTimerArmed:
		m.timerEvents.WithLabelValues("armed").Inc()
	case events.EvTimerFired:
		m.timerEvents.WithLabelValues("fired").Inc()
	case events.EvTimerCancelled:
		m.timerEvents.WithLabelValues("cancelled").Inc()
	case events.EvReload:
		m.reloadsTotal.Inc()
	}
}

// Closed implements events.Subscriber.
func (m *Metrics) Closed() bool { return m.closed.Load() }

// Close stops the bus from delivering events to the metrics.
func (m *Metrics) Close() { m.closed.Store(true) }

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	if g := m.game; g != nil {
		g.mu.Lock()
		m.instances.Set(float64(g.Runtime.Instances()))
		m.entities.Set(float64(len(g.DB.Entities)))
		m.globals.Set(float64(g.Runtime.Globals.Len()))
		m.timersActive.Set(float64(g.Runtime.Timers.Active()))
		m.tickSeconds.Set(g.lastTick.Seconds())
		m.gameClock.Set(float64(g.Runtime.Now()))
		g.mu.Unlock()

		immediate, waiting := g.Queue.Stats()
		m.queueDepth.WithLabelValues("immediate").Set(float64(immediate))
		m.queueDepth.WithLabelValues("waiting").Set(float64(waiting))
	}

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		h.ServeHTTP(w, r)
	})
}
