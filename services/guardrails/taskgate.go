// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"context"
	"sync"
	"time"
)

// ActionCounter counts autonomous AI-originated actions per ticket inside
// a trailing window. Implementations back the TaskGate; the gate itself
// never touches storage directly.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ActionCounter interface {
	// Record registers one autonomous action on the ticket at the current
	// instant.
	Record(ctx context.Context, ticketID string) error

	// CountSince returns how many actions were recorded on the ticket at
	// or after the cutoff instant.
	CountSince(ctx context.Context, ticketID string, cutoff time.Time) (int, error)
}

// TaskGate rate-limits autonomous agent actions per ticket.
//
// Description:
//
//	Protects against runaway reply loops when a conversation partner is
//	itself automated, or when the model repeatedly misjudges its own
//	confidence. A denied ticket is not dropped: the caller runs the model
//	in suggestion mode instead, so the output is produced but never
//	auto-applied.
//
// Thread Safety: Safe for concurrent use when the counter is.
type TaskGate struct {
	counter ActionCounter
	now     func() time.Time
}

// NewTaskGate creates a gate over the given counter.
func NewTaskGate(counter ActionCounter) *TaskGate {
	if counter == nil {
		panic("NewTaskGate: counter must not be nil")
	}
	return &TaskGate{counter: counter, now: time.Now}
}

// SetClock overrides the gate's clock. Test hook.
func (g *TaskGate) SetClock(now func() time.Time) { g.now = now }

// Allow reports whether another autonomous action on the ticket fits
// inside the sliding window.
//
// Outputs:
//   - bool: False when the in-window count already meets or exceeds
//     limit. Counter failures also return false: when the count is
//     unknowable the gate fails toward the safer suggestion path.
//   - error: The counter failure, if any. A denial within a healthy
//     counter is not an error.
func (g *TaskGate) Allow(ctx context.Context, ticketID string, window time.Duration, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil // no limit configured
	}
	cutoff := g.now().Add(-window)
	n, err := g.counter.CountSince(ctx, ticketID, cutoff)
	if err != nil {
		taskGateDecisionsTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if n >= limit {
		taskGateDecisionsTotal.WithLabelValues("denied").Inc()
		return false, nil
	}
	taskGateDecisionsTotal.WithLabelValues("allowed").Inc()
	return true, nil
}

// RecordAction registers an autonomous action so subsequent Allow calls
// see it. Callers invoke this only after actually applying a side effect
// autonomously; suggestion-mode output does not count.
func (g *TaskGate) RecordAction(ctx context.Context, ticketID string) error {
	return g.counter.Record(ctx, ticketID)
}

// MemoryCounter is an in-process ActionCounter using a sliding window of
// timestamps per ticket.
//
// Description:
//
//	Suitable for single-instance deployments, tests, and dev mode. Prunes
//	expired timestamps lazily on every operation so idle tickets do not
//	accumulate state forever.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type MemoryCounter struct {
	mu        sync.Mutex
	windows   map[string][]int64 // timestamps in Unix milliseconds
	retention time.Duration
	now       func() time.Time
}

// NewMemoryCounter creates an in-memory counter. Timestamps older than
// retention are pruned; retention must exceed the largest window any
// caller gates with. Zero retention defaults to 24 hours.
func NewMemoryCounter(retention time.Duration) *MemoryCounter {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemoryCounter{
		windows:   make(map[string][]int64),
		retention: retention,
		now:       time.Now,
	}
}

// SetClock overrides the counter's clock. Test hook.
func (c *MemoryCounter) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCounter) Record(_ context.Context, ticketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows[ticketID] = append(c.prune(ticketID), c.now().UnixMilli())
	return nil
}

func (c *MemoryCounter) CountSince(_ context.Context, ticketID string, cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows[ticketID] = c.prune(ticketID)
	cutoffMilli := cutoff.UnixMilli()
	n := 0
	for _, ts := range c.windows[ticketID] {
		if ts >= cutoffMilli {
			n++
		}
	}
	return n, nil
}

// prune drops timestamps past retention. Caller holds the lock.
func (c *MemoryCounter) prune(ticketID string) []int64 {
	floor := c.now().Add(-c.retention).UnixMilli()
	timestamps := c.windows[ticketID]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts > floor {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(c.windows, ticketID)
		return nil
	}
	return kept
}
