// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package interactions

import (
	"context"
	"testing"
	"time"

	badgerstore "github.com/ClawdeskHQ/clawdesk/services/storage/badger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badgerstore.Open("", nil) // in-memory
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, 0, nil)
}

func TestSaveAndListByTicket(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.Save(ctx, Record{
			TenantID:      "tenant-1",
			TicketID:      "ticket-1",
			Kind:          "triage",
			Action:        "triaged",
			Confidence:    0.9,
			Summary:       "Set priority HIGH",
			ToolCallCount: 2,
			AutoApplied:   true,
			TriggeredBy:   "ticket.created",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	records, err := store.ListByTicket(ctx, "tenant-1", "ticket-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	// Newest first.
	if !records[0].CreatedAt.After(records[2].CreatedAt) {
		t.Errorf("records not sorted newest first: %v", records)
	}
	if records[0].Action != "triaged" || records[0].ToolCallCount != 2 {
		t.Errorf("record fields lost in round trip: %+v", records[0])
	}
}

func TestSaveAssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Save(context.Background(), Record{
		TenantID: "tenant-1",
		TicketID: "ticket-1",
		Kind:     "widget",
		Action:   "needs_human",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.ID == "" {
		t.Error("ID not assigned")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
}

func TestSaveRequiresScope(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Save(context.Background(), Record{TicketID: "ticket-1"}); err == nil {
		t.Error("expected error for missing tenantId")
	}
	if _, err := store.Save(context.Background(), Record{TenantID: "tenant-1"}); err == nil {
		t.Error("expected error for missing ticketId")
	}
}

func TestListScopesByTicketAndTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []Record{
		{TenantID: "tenant-1", TicketID: "ticket-1", Kind: "triage", Action: "triaged"},
		{TenantID: "tenant-1", TicketID: "ticket-2", Kind: "widget", Action: "replied"},
		{TenantID: "tenant-2", TicketID: "ticket-1", Kind: "triage", Action: "triaged"},
	}
	for i, rec := range seed {
		if _, err := store.Save(ctx, rec); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	byTicket, err := store.ListByTicket(ctx, "tenant-1", "ticket-1", 0)
	if err != nil {
		t.Fatalf("list by ticket: %v", err)
	}
	if len(byTicket) != 1 {
		t.Errorf("ticket-scoped records = %d, want 1", len(byTicket))
	}

	byTenant, err := store.ListByTenant(ctx, "tenant-1", 0)
	if err != nil {
		t.Fatalf("list by tenant: %v", err)
	}
	if len(byTenant) != 2 {
		t.Errorf("tenant-scoped records = %d, want 2", len(byTenant))
	}

	limited, err := store.ListByTenant(ctx, "tenant-1", 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited records = %d, want 1", len(limited))
	}
}
