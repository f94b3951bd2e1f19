// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus counters for history sync and rendering.
//
// All methods are nil-safe so components can be built without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	merges          prometheus.Counter
	admitted        prometheus.Counter
	duplicates      prometheus.Counter
	invalid         prometheus.Counter
	storeSize       prometheus.Gauge
	renderBatches   prometheus.Counter
	rendered        prometheus.Counter
	evicted         prometheus.Counter
	routerEvents    *prometheus.CounterVec
	relayDeliveries *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "history", Name: "merges_total",
			Help: "Number of merge operations applied to the local history.",
		}),
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "history", Name: "admitted_total",
			Help: "Messages admitted by the merge engine.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "history", Name: "duplicates_total",
			Help: "Incoming messages dropped because their identity key was already present.",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "history", Name: "invalid_total",
			Help: "Incoming entries skipped because they were malformed.",
		}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tutorchat", Subsystem: "history", Name: "store_size",
			Help: "Messages currently retained in the local history store.",
		}),
		renderBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "render", Name: "batches_total",
			Help: "Render batches drained.",
		}),
		rendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "render", Name: "rendered_total",
			Help: "Messages committed to the view.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "render", Name: "evicted_total",
			Help: "Rendered messages removed by the eviction sweep.",
		}),
		routerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "router", Name: "events_total",
			Help: "Transport events dispatched, by kind.",
		}, []string{"kind"}),
		relayDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutorchat", Subsystem: "relay", Name: "deliveries_total",
			Help: "Envelopes delivered to peers, by event.",
		}, []string{"event"}),
	}

	m.registry.MustRegister(
		m.merges, m.admitted, m.duplicates, m.invalid, m.storeSize,
		m.renderBatches, m.rendered, m.evicted,
		m.routerEvents, m.relayDeliveries,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveMerge records the outcome of one merge.
func (m *Metrics) ObserveMerge(admitted, duplicates, invalid, size int) {
	if m == nil {
		return
	}
	m.merges.Inc()
	m.admitted.Add(float64(admitted))
	m.duplicates.Add(float64(duplicates))
	m.invalid.Add(float64(invalid))
	m.storeSize.Set(float64(size))
}

// ObserveBatch records one drained render batch.
func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.renderBatches.Inc()
	m.rendered.Add(float64(n))
}

// ObserveEviction records messages removed by a sweep.
func (m *Metrics) ObserveEviction(n int) {
	if m == nil || n == 0 {
		return
	}
	m.evicted.Add(float64(n))
}

// ObserveEvent records a dispatched router event.
func (m *Metrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.routerEvents.WithLabelValues(kind).Inc()
}

// ObserveDelivery records a relay delivery.
func (m *Metrics) ObserveDelivery(event string) {
	if m == nil {
		return
	}
	m.relayDeliveries.WithLabelValues(event).Inc()
}
