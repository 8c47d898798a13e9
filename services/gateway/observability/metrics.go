// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// Metrics cover inbound message handling and upstream exchanges:
//   - message counters by command and status
//   - exchange latency histograms
//   - active upstream streams
//   - login flow events and image uploads
//
// All metric operations are thread-safe via Prometheus's internal
// locking. Exposed on /metrics for Prometheus scraping.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "xiaobai"

const bridgeSubsystem = "bridge"

// BridgeMetrics holds all Prometheus metrics for message handling.
// Initialize once at startup via InitMetrics().
type BridgeMetrics struct {
	// MessagesTotal counts handled messages.
	// Labels: command (chat, search, image, vision, login, none), status (success, error, ignored)
	MessagesTotal *prometheus.CounterVec

	// ExchangeDurationSeconds measures one full upstream exchange,
	// request to reassembled answer.
	// Labels: command
	ExchangeDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open upstream SSE streams.
	ActiveStreams prometheus.Gauge

	// LoginEventsTotal counts login flow transitions.
	// Labels: event (started, code_sent, code_rejected, completed)
	LoginEventsTotal *prometheus.CounterVec

	// UploadsTotal counts image uploads by status.
	// Labels: status (success, error)
	UploadsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *BridgeMetrics

// InitMetrics creates and registers all gateway metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *BridgeMetrics {
	DefaultMetrics = &BridgeMetrics{
		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bridgeSubsystem,
				Name:      "messages_total",
				Help:      "Total handled messages by command and status",
			},
			[]string{"command", "status"},
		),

		ExchangeDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: bridgeSubsystem,
				Name:      "exchange_duration_seconds",
				Help:      "Duration of one upstream exchange in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"command"},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: bridgeSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open upstream SSE streams",
			},
		),

		LoginEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bridgeSubsystem,
				Name:      "login_events_total",
				Help:      "Total login flow events",
			},
			[]string{"event"},
		),

		UploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bridgeSubsystem,
				Name:      "uploads_total",
				Help:      "Total image uploads by status",
			},
			[]string{"status"},
		),
	}
	return DefaultMetrics
}

// RecordMessage records one handled message.
func (m *BridgeMetrics) RecordMessage(command, status string) {
	m.MessagesTotal.WithLabelValues(command, status).Inc()
}

// ObserveExchange records the duration of one upstream exchange.
func (m *BridgeMetrics) ObserveExchange(command string, seconds float64) {
	m.ExchangeDurationSeconds.WithLabelValues(command).Observe(seconds)
}

// StreamStarted increments the active stream gauge.
func (m *BridgeMetrics) StreamStarted() { m.ActiveStreams.Inc() }

// StreamEnded decrements the active stream gauge.
func (m *BridgeMetrics) StreamEnded() { m.ActiveStreams.Dec() }

// RecordLoginEvent records a login flow transition.
func (m *BridgeMetrics) RecordLoginEvent(event string) {
	m.LoginEventsTotal.WithLabelValues(event).Inc()
}

// RecordUpload records an image upload outcome.
func (m *BridgeMetrics) RecordUpload(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
}
