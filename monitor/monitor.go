// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlineConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	EventsReceived    *prometheus.CounterVec
	EventLatency      prometheus.Histogram
	AnswersSubmitted  *prometheus.CounterVec
	RoundsCompleted   prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlineConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_connections",
			Help:      "Number of open websocket connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of inbound events by name",
		}, []string{"event"}),
		EventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_latency_seconds",
			Help:      "Inbound event processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		AnswersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Answers submitted by correctness",
		}, []string{"correct"}),
		RoundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_completed_total",
			Help:      "Rounds that reached the leaderboard",
		}),
	}
}

// Monitor 持有指标和独立的 prometheus registry。
// 所有方法允许 nil 接收者，未启用监控时调用方无需判断。
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.metrics.OnlineConnections,
		m.metrics.ActiveRooms,
		m.metrics.EventsReceived,
		m.metrics.EventLatency,
		m.metrics.AnswersSubmitted,
		m.metrics.RoundsCompleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) IncOnlineConnections() {
	if m == nil {
		return
	}
	m.metrics.OnlineConnections.Inc()
}

func (m *Monitor) DecOnlineConnections() {
	if m == nil {
		return
	}
	m.metrics.OnlineConnections.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncEventsReceived(event string) {
	if m == nil {
		return
	}
	m.metrics.EventsReceived.WithLabelValues(event).Inc()
}

func (m *Monitor) ObserveEventLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.EventLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncAnswers(correct bool) {
	if m == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	m.metrics.AnswersSubmitted.WithLabelValues(label).Inc()
}

func (m *Monitor) IncRoundsCompleted() {
	if m == nil {
		return
	}
	m.metrics.RoundsCompleted.Inc()
}
