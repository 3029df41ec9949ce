// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"testing"
	"time"
)

func TestWithinBusinessHours(t *testing.T) {
	weekday := BusinessHours{
		Timezone: "UTC",
		WorkDays: []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		Start:    "09:00",
		End:      "17:00",
	}

	tests := []struct {
		name string
		bh   BusinessHours
		at   time.Time
		want bool
	}{
		{
			name: "monday one minute before close",
			bh:   weekday,
			at:   time.Date(2025, 11, 3, 16, 59, 0, 0, time.UTC), // Monday
			want: true,
		},
		{
			name: "monday exactly at close is excluded",
			bh:   weekday,
			at:   time.Date(2025, 11, 3, 17, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "monday exactly at open is included",
			bh:   weekday,
			at:   time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "saturday midday",
			bh:   weekday,
			at:   time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC), // Saturday
			want: false,
		},
		{
			name: "empty config defaults to mon-fri nine-to-five utc",
			bh:   BusinessHours{},
			at:   time.Date(2025, 11, 5, 10, 30, 0, 0, time.UTC), // Wednesday
			want: true,
		},
		{
			name: "empty config excludes sunday",
			bh:   BusinessHours{},
			at:   time.Date(2025, 11, 9, 10, 30, 0, 0, time.UTC), // Sunday
			want: false,
		},
		{
			name: "timezone shifts the local weekday",
			bh: BusinessHours{
				Timezone: "America/New_York",
				WorkDays: []string{"Fri"},
				Start:    "09:00",
				End:      "17:00",
			},
			// Saturday 02:00 UTC is still Friday 21:00 in New York,
			// which is past closing time there.
			at:   time.Date(2025, 11, 8, 2, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "timezone keeps the window open across utc midnight",
			bh: BusinessHours{
				Timezone: "America/New_York",
				WorkDays: []string{"Fri"},
				Start:    "09:00",
				End:      "17:00",
			},
			// Friday 20:00 UTC is Friday 15:00 in New York.
			at:   time.Date(2025, 11, 7, 20, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "unknown timezone falls back to utc",
			bh: BusinessHours{
				Timezone: "Mars/Olympus_Mons",
				WorkDays: []string{"Mon"},
				Start:    "09:00",
				End:      "17:00",
			},
			at:   time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "malformed clock falls back to defaults",
			bh: BusinessHours{
				Timezone: "UTC",
				WorkDays: []string{"Mon"},
				Start:    "nine",
				End:      "five",
			},
			at:   time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "case-insensitive day names",
			bh: BusinessHours{
				Timezone: "UTC",
				WorkDays: []string{"mon", "TUE"},
				Start:    "09:00",
				End:      "17:00",
			},
			at:   time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC), // Tuesday
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinBusinessHours(tc.bh, tc.at); got != tc.want {
				t.Errorf("WithinBusinessHours(%+v, %v) = %v, want %v", tc.bh, tc.at, got, tc.want)
			}
		})
	}
}

func TestMeetsConfidence(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		threshold  float64
		want       bool
	}{
		{"just below threshold", 0.79, 0.8, false},
		{"exactly at threshold", 0.80, 0.8, true},
		{"above threshold", 0.95, 0.8, true},
		{"zero confidence", 0, 0.8, false},
		{"zero threshold uses default", 0.79, 0, false},
		{"zero threshold default boundary", 0.8, 0, true},
		{"custom strict threshold", 0.85, 0.9, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MeetsConfidence(tc.confidence, tc.threshold); got != tc.want {
				t.Errorf("MeetsConfidence(%v, %v) = %v, want %v", tc.confidence, tc.threshold, got, tc.want)
			}
		})
	}
}
