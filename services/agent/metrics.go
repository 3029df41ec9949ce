// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Agent Runs
// =============================================================================

var (
	// agentRunsTotal counts orchestrator runs by terminal action.
	// Labels: action (replied, triaged, escalated, resolved, needs_human)
	agentRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clawdesk",
		Subsystem: "agent",
		Name:      "runs_total",
		Help:      "Total orchestrator runs by terminal action",
	}, []string{"action"})

	// agentRunDuration measures end-to-end run latency.
	agentRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clawdesk",
		Subsystem: "agent",
		Name:      "run_duration_seconds",
		Help:      "End-to-end orchestrator run duration",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// agentToolCallsPerRun observes the length of the tool trail per run.
	agentToolCallsPerRun = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clawdesk",
		Subsystem: "agent",
		Name:      "tool_calls_per_run",
		Help:      "Tool executions per orchestrator run",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
)

func recordRun(action string, toolCalls int, d time.Duration) {
	agentRunsTotal.WithLabelValues(action).Inc()
	agentRunDuration.Observe(d.Seconds())
	agentToolCallsPerRun.Observe(float64(toolCalls))
}
