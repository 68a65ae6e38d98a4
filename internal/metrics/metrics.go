// Package metrics exposes Prometheus metrics for table stores and the HTTP API.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/gridform/internal/core"
)

const namespace = "gridform"

// Metrics holds the collectors. Create one per registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	validations  *prometheus.CounterVec
	rowEvents    *prometheus.CounterVec
	activeOps    *prometheus.GaugeVec
	rows         *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Row validations by table and outcome",
		}, []string{"table", "outcome"}),

		rowEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_events_total",
			Help:      "Store mutations by table and kind",
		}, []string{"table", "kind"}),

		activeOps: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_operations",
			Help:      "Rows currently being added or edited",
		}, []string{"table", "status"}),

		rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Rows held per table",
		}, []string{"table"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the registry the collectors live on.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Observe records a store event.
func (m *Metrics) Observe(ev core.Event) {
	switch ev.Kind {
	case core.EventValidated:
		outcome := "ok"
		if ev.Failed {
			outcome = "failed"
		}
		m.validations.WithLabelValues(ev.Table, outcome).Inc()
	default:
		m.rowEvents.WithLabelValues(ev.Table, string(ev.Kind)).Inc()
	}
}

// Sample sets the gauges from the current state of s.
func (m *Metrics) Sample(s *core.Store) {
	ops, _ := s.HasActiveOperations()
	m.activeOps.WithLabelValues(s.Name(), string(core.StatusEdit)).Set(float64(len(ops.Edit)))
	m.activeOps.WithLabelValues(s.Name(), string(core.StatusAdd)).Set(float64(len(ops.Add)))
	m.rows.WithLabelValues(s.Name()).Set(float64(s.Len()))
}

// Track feeds the events of every store on form into m until ctx is done.
// Gauges are refreshed after each mutation that can change them.
func (m *Metrics) Track(ctx context.Context, form *core.Form, buffer int) {
	for _, name := range form.Names() {
		if s, ok := form.Store(name); ok {
			m.Sample(s)
		}
	}

	events, stop := form.Subscribe(buffer)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Observe(ev)
			switch ev.Kind {
			case core.EventValidated, core.EventErrorsChanged:
				continue
			}
			if s, ok := form.Store(ev.Table); ok {
				m.Sample(s)
			}
		}
	}
}
