// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var toolExecutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clawdesk",
		Subsystem: "agent",
		Name:      "tool_executions_total",
		Help:      "Tool executions performed by the agent, by tool and outcome.",
	},
	[]string{"tool", "status"},
)
