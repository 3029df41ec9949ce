// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for model endpoint calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// modelCallsTotal counts chat-completion requests.
	//
	// Labels:
	//   - model: the model name used for the request
	//   - status: "success" or "error"
	modelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clawdesk",
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Total number of model API calls.",
		},
		[]string{"model", "status"},
	)

	// modelCallDuration measures the duration of chat-completion requests.
	//
	// Labels:
	//   - model: the model name used for the request
	//   - status: "success" or "error"
	modelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clawdesk",
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Duration of model API calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "status"},
	)
)

func recordModelCall(model, status string, d time.Duration) {
	modelCallsTotal.WithLabelValues(model, status).Inc()
	modelCallDuration.WithLabelValues(model, status).Observe(d.Seconds())
}
