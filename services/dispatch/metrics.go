// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clawdesk",
		Subsystem: "dispatch",
		Name:      "decisions_total",
		Help:      "Dispatch decisions by trigger and chosen route.",
	},
	[]string{"trigger", "route"},
)
