// Package metrics exports capture pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tuskmem"

// Poll outcomes
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// Metrics is safe to use as a nil pointer; every Record method is then a
// no-op, so packages can take it optionally.
type Metrics struct {
	registry *prometheus.Registry

	PollsTotal      *prometheus.CounterVec
	PollDuration    *prometheus.HistogramVec
	Conversations   *prometheus.CounterVec
	ChunksTotal     *prometheus.CounterVec
	SinkWritesTotal *prometheus.CounterVec
	MessagesMerged  prometheus.Counter
	MergeConflicts  prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		PollsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total source polls by outcome",
			},
			[]string{"source", "outcome"},
		),
		PollDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Source poll duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"source"},
		),
		Conversations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversations_total",
				Help:      "Conversations seen by pollers, by result",
			},
			[]string{"source", "result"},
		),
		ChunksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_chunks_total",
				Help:      "Cache chunks by result",
			},
			[]string{"source", "result"},
		),
		SinkWritesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_writes_total",
				Help:      "Memory sink writes by sink and status",
			},
			[]string{"sink", "status"},
		),
		MessagesMerged: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consolidated_messages_total",
				Help:      "Messages kept by multi-source consolidation",
			},
		),
		MergeConflicts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consolidation_conflicts_total",
				Help:      "Duplicate content hashes resolved by consolidation",
			},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordPoll(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(source, outcome).Inc()
	m.PollDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordConversation counts one conversation; result is processed, skipped
// or failed.
func (m *Metrics) RecordConversation(source, result string) {
	if m == nil {
		return
	}
	m.Conversations.WithLabelValues(source, result).Inc()
}

func (m *Metrics) RecordChunks(source string, written, skipped, failed int) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(source, "written").Add(float64(written))
	m.ChunksTotal.WithLabelValues(source, "skipped").Add(float64(skipped))
	m.ChunksTotal.WithLabelValues(source, "failed").Add(float64(failed))
}

func (m *Metrics) RecordSinkWrite(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SinkWritesTotal.WithLabelValues(sink, status).Inc()
}

func (m *Metrics) RecordConsolidation(kept, conflicts int) {
	if m == nil {
		return
	}
	m.MessagesMerged.Add(float64(kept))
	m.MergeConflicts.Add(float64(conflicts))
}

func (m *Metrics) RecordHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
