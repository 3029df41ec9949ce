// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ticketing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store implementation used by tests, the CLI's
// dev mode, and the service's -dev flag. It mimics the platform store's
// contract, including per-row atomic mutation and tenant scoping, but keeps
// everything in process memory.
//
// Thread Safety: Safe for concurrent use via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	tickets  map[string]*Ticket  // key: ticket ID
	messages map[string][]Message // key: ticket ID, chronological
	contacts map[string]*Contact
	teams    map[string]*Team
	canned   map[string]*CannedResponse
	now      func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		tickets:  make(map[string]*Ticket),
		messages: make(map[string][]Message),
		contacts: make(map[string]*Contact),
		teams:    make(map[string]*Team),
		canned:   make(map[string]*CannedResponse),
		now:      time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutTicket inserts or replaces a ticket. Seeding helper; assigns an ID and
// CreatedAt when absent.
func (s *MemStore) PutTicket(t Ticket) *Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	cp := t
	s.tickets[t.ID] = &cp
	return copyTicket(&cp)
}

// PutContact inserts or replaces a contact. Seeding helper.
func (s *MemStore) PutContact(c Contact) *Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := c
	s.contacts[c.ID] = &cp
	out := cp
	return &out
}

// PutTeam inserts or replaces a team. Seeding helper.
func (s *MemStore) PutTeam(t Team) *Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := t
	s.teams[t.ID] = &cp
	out := cp
	return &out
}

// PutCannedResponse inserts or replaces a canned response. Seeding helper.
func (s *MemStore) PutCannedResponse(c CannedResponse) *CannedResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := c
	s.canned[c.ID] = &cp
	out := cp
	return &out
}

func (s *MemStore) GetTicket(_ context.Context, tenantID, ticketID string) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[ticketID]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return copyTicket(t), nil
}

func (s *MemStore) ListMessages(_ context.Context, tenantID, ticketID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[ticketID]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	msgs := s.messages[ticketID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemStore) UpdateTicket(_ context.Context, tenantID, ticketID string, upd TicketUpdate) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	if upd.Status != nil {
		t.Status = *upd.Status
		now := s.now()
		switch *upd.Status {
		case StatusResolved:
			t.ResolvedAt = &now
		case StatusClosed:
			t.ClosedAt = &now
		}
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.AssigneeID != nil {
		t.AssigneeID = *upd.AssigneeID
	}
	if upd.TeamID != nil {
		t.TeamID = *upd.TeamID
	}
	if upd.Tags != nil {
		t.Tags = append([]string(nil), (*upd.Tags)...)
	}
	if len(upd.Metadata) > 0 {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any, len(upd.Metadata))
		}
		for k, v := range upd.Metadata {
			t.Metadata[k] = v
		}
	}
	return copyTicket(t), nil
}

func (s *MemStore) CreateMessage(_ context.Context, tenantID string, msg NewMessage) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[msg.TicketID]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	m := Message{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		TicketID:  msg.TicketID,
		Direction: msg.Direction,
		Type:      msg.Type,
		Content:   msg.Content,
		Metadata:  msg.Metadata,
		CreatedAt: s.now(),
	}
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], m)
	out := m
	return &out, nil
}

func (s *MemStore) SearchTickets(_ context.Context, tenantID, query string, status TicketStatus, limit int) ([]TicketMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var matches []TicketMatch
	for _, t := range s.tickets {
		if t.TenantID != tenantID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		m := TicketMatch{Ticket: *copyTicket(t)}
		hit := strings.Contains(strings.ToLower(t.Subject), q)
		if !hit {
			for _, msg := range s.messages[t.ID] {
				if strings.Contains(strings.ToLower(msg.Content), q) {
					hit = true
					m.Snippet = clip(msg.Content, 200)
					break
				}
			}
		}
		if hit {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Ticket.CreatedAt.After(matches[j].Ticket.CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemStore) GetContact(_ context.Context, tenantID, contactID string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[contactID]
	if !ok || c.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemStore) ContactTickets(_ context.Context, tenantID, contactID string, limit int) ([]Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Ticket
	for _, t := range s.tickets {
		if t.TenantID == tenantID && t.ContactID == contactID {
			out = append(out, *copyTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ListCannedResponses(_ context.Context, tenantID, query string, limit int) ([]CannedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var out []CannedResponse
	for _, c := range s.canned {
		if c.TenantID != tenantID {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(c.Title), q) &&
			!strings.Contains(strings.ToLower(c.Content), q) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsageCount > out[j].UsageCount })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) SearchResolvedReplies(_ context.Context, tenantID, query string, limit int) ([]ResolvedReply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var out []ResolvedReply
	for id, t := range s.tickets {
		if t.TenantID != tenantID || t.Status != StatusResolved {
			continue
		}
		for _, msg := range s.messages[id] {
			if msg.Direction != DirectionOutbound || msg.Type != TypeText {
				continue
			}
			if !strings.Contains(strings.ToLower(msg.Content), q) {
				continue
			}
			out = append(out, ResolvedReply{
				MessageID:     msg.ID,
				TicketID:      t.ID,
				TicketSubject: t.Subject,
				Snippet:       clip(msg.Content, 300),
				CreatedAt:     msg.CreatedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) GetTeam(_ context.Context, tenantID, teamID string) (*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[teamID]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

func (s *MemStore) ListTeams(_ context.Context, tenantID string) ([]Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Team
	for _, t := range s.teams {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func copyTicket(t *Ticket) *Ticket {
	cp := *t
	cp.Tags = append([]string(nil), t.Tags...)
	if t.Metadata != nil {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
