// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package interactions persists an audit trail of agent runs.
//
// Every dispatcher-triggered run, autonomous or suggestion-mode, leaves
// one record: what task ran, what the agent decided, how confident it
// was, and how many tools it touched. Support leads use this trail to
// review the agent's behavior per ticket; it is diagnostic data, not the
// source of truth for the ticket itself.
//
// Storage layout:
//
//	interactions/v1/{tenant}/{ticket}/{unixNano}-{id}  →  JSON-encoded Record
//	                                                      TTL: 90 days
package interactions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	badgerstore "github.com/ClawdeskHQ/clawdesk/services/storage/badger"
)

// defaultTTL is how long interaction records are retained. Enforced by
// BadgerDB's native TTL; expired records simply stop appearing in scans.
const defaultTTL = 90 * 24 * time.Hour

const keyPrefix = "interactions/v1/"

// Record is one agent run as seen by the audit trail.
type Record struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	TicketID      string    `json:"ticketId"`
	Kind          string    `json:"kind"` // triage, auto_reply, resolve, summarize, widget, suggestion
	Action        string    `json:"action"`
	Confidence    float64   `json:"confidence"`
	Summary       string    `json:"summary"`
	ToolCallCount int       `json:"toolCallCount"`
	AutoApplied   bool      `json:"autoApplied"`
	TriggeredBy   string    `json:"triggeredBy"` // ticket.created, message.created, api, cli
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists interaction records in BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store over an opened DB. The caller owns the DB
// lifecycle. Pass ttl 0 for the 90-day default.
func NewStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *Store {
	if db == nil {
		panic("interactions.NewStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, ttl: ttl, logger: logger, now: time.Now}
}

// SetClock overrides the store's clock. Test hook.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Save persists one record, assigning ID and CreatedAt when absent.
// Returns the stored record.
func (s *Store) Save(ctx context.Context, rec Record) (*Record, error) {
	if rec.TenantID == "" || rec.TicketID == "" {
		return nil, fmt.Errorf("interactions: record requires tenantId and ticketId")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("interactions: encode record: %w", err)
	}

	key := recordKey(rec)
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return nil, fmt.Errorf("interactions: save record: %w", err)
	}

	s.logger.Debug("interaction recorded",
		slog.String("tenant_id", rec.TenantID),
		slog.String("ticket_id", rec.TicketID),
		slog.String("kind", rec.Kind),
		slog.String("action", rec.Action),
	)
	return &rec, nil
}

// ListByTicket returns the ticket's records, newest first, up to limit.
// Zero limit means no cap.
func (s *Store) ListByTicket(ctx context.Context, tenantID, ticketID string, limit int) ([]Record, error) {
	prefix := []byte(keyPrefix + tenantID + "/" + ticketID + "/")
	records, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListByTenant returns the tenant's records across all tickets, newest
// first, up to limit. Zero limit means no cap.
func (s *Store) ListByTenant(ctx context.Context, tenantID string, limit int) ([]Record, error) {
	prefix := []byte(keyPrefix + tenantID + "/")
	records, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) scan(ctx context.Context, prefix []byte) ([]Record, error) {
	var records []Record
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				// A corrupt record should not hide the rest of the trail.
				s.logger.Warn("skipping undecodable interaction record",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("interactions: scan: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// recordKey builds the BadgerDB key. The zero-padded nanosecond stamp
// keeps keys for one ticket in chronological byte order.
func recordKey(rec Record) []byte {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(rec.TenantID)
	b.WriteByte('/')
	b.WriteString(rec.TicketID)
	b.WriteByte('/')
	fmt.Fprintf(&b, "%020d-%s", rec.CreatedAt.UnixNano(), rec.ID)
	return []byte(b.String())
}
