// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"fmt"
	"strings"
	"time"
)

// BusinessHours describes when a tenant allows fully autonomous agent
// actions. Zero-valued fields fall back to the defaults: Monday through
// Friday, 09:00 to 17:00, UTC.
type BusinessHours struct {
	Timezone string   `json:"timezone" yaml:"timezone"`
	WorkDays []string `json:"workDays" yaml:"work_days"` // "Mon".."Sun"
	Start    string   `json:"startTime" yaml:"start"`    // "HH:MM"
	End      string   `json:"endTime" yaml:"end"`        // "HH:MM"
}

var defaultWorkDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

// WithinBusinessHours reports whether the instant falls inside the
// configured window.
//
// Description:
//
//	The instant is resolved into the configured timezone, then the
//	weekday and time-of-day are checked. The window is half-open: the
//	start minute is included, the end minute is excluded, so 17:00 with
//	End "17:00" is already outside. Unparseable configuration falls back
//	to the corresponding default rather than failing closed; the function
//	is a policy check, not a validator.
//
// Thread Safety: Pure function, safe for concurrent use.
func WithinBusinessHours(bh BusinessHours, at time.Time) bool {
	loc := time.UTC
	if bh.Timezone != "" {
		if l, err := time.LoadLocation(bh.Timezone); err == nil {
			loc = l
		}
	}
	local := at.In(loc)

	days := bh.WorkDays
	if len(days) == 0 {
		days = defaultWorkDays
	}
	weekday := local.Weekday().String()[:3]
	dayOK := false
	for _, d := range days {
		if strings.EqualFold(d, weekday) {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}

	start := parseClock(bh.Start, 9*60)
	end := parseClock(bh.End, 17*60)
	minute := local.Hour()*60 + local.Minute()

	return minute >= start && minute < end
}

// parseClock converts "HH:MM" to minutes since midnight, returning
// fallback on any malformed input.
func parseClock(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return fallback
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fallback
	}
	return h*60 + m
}
