// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTaskGateDeniesAtLimit(t *testing.T) {
	counter := NewMemoryCounter(2 * time.Hour)
	gate := NewTaskGate(counter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := gate.Allow(ctx, "ticket-1", time.Hour, 5)
		if err != nil || !ok {
			t.Fatalf("action %d: Allow = (%v, %v), want allowed", i+1, ok, err)
		}
		if err := gate.RecordAction(ctx, "ticket-1"); err != nil {
			t.Fatalf("record action %d: %v", i+1, err)
		}
	}

	ok, err := gate.Allow(ctx, "ticket-1", time.Hour, 5)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Error("sixth action within window should be denied")
	}
}

func TestTaskGateAllowsAfterWindowElapses(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	counter := NewMemoryCounter(4 * time.Hour)
	counter.SetClock(clock)
	gate := NewTaskGate(counter)
	gate.SetClock(clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := gate.RecordAction(ctx, "ticket-1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if ok, _ := gate.Allow(ctx, "ticket-1", time.Hour, 5); ok {
		t.Fatal("expected denial at limit")
	}

	now = now.Add(61 * time.Minute)
	ok, err := gate.Allow(ctx, "ticket-1", time.Hour, 5)
	if err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
	if !ok {
		t.Error("actions outside the trailing window should no longer count")
	}
}

func TestTaskGateScopedPerTicket(t *testing.T) {
	counter := NewMemoryCounter(2 * time.Hour)
	gate := NewTaskGate(counter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := gate.RecordAction(ctx, "busy-ticket"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if ok, _ := gate.Allow(ctx, "busy-ticket", time.Hour, 5); ok {
		t.Error("busy ticket should be denied")
	}
	if ok, _ := gate.Allow(ctx, "quiet-ticket", time.Hour, 5); !ok {
		t.Error("other tickets must be unaffected")
	}
}

func TestTaskGateZeroLimitMeansUnlimited(t *testing.T) {
	gate := NewTaskGate(NewMemoryCounter(time.Hour))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := gate.RecordAction(ctx, "ticket-1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if ok, err := gate.Allow(ctx, "ticket-1", time.Hour, 0); err != nil || !ok {
		t.Errorf("Allow with limit 0 = (%v, %v), want unconditionally allowed", ok, err)
	}
}

type failingCounter struct{}

func (failingCounter) Record(context.Context, string) error { return errors.New("redis down") }
func (failingCounter) CountSince(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("redis down")
}

func TestTaskGateFailsClosedOnCounterError(t *testing.T) {
	gate := NewTaskGate(failingCounter{})

	ok, err := gate.Allow(context.Background(), "ticket-1", time.Hour, 5)
	if err == nil {
		t.Fatal("expected counter error to surface")
	}
	if ok {
		t.Error("an unknowable count must deny autonomous action")
	}
}

func TestMemoryCounterPrunesExpiredEntries(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	counter := NewMemoryCounter(time.Hour)
	counter.SetClock(clock)
	ctx := context.Background()

	if err := counter.Record(ctx, "ticket-1"); err != nil {
		t.Fatalf("record: %v", err)
	}

	now = now.Add(2 * time.Hour)
	n, err := counter.CountSince(ctx, "ticket-1", now.Add(-3*time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	// The entry is older than retention, so it is pruned even though the
	// requested cutoff would otherwise include it.
	if n != 0 {
		t.Errorf("count = %d, want 0 after retention pruning", n)
	}
}
