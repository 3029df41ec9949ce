// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ticketing

import (
	"context"
	"sync"
)

// Domain event names emitted for every side-effecting agent tool call.
// The automation, notification, and webhook subsystems subscribe to these.
const (
	EventTicketUpdated  = "ticket.updated"
	EventMessageCreated = "message.created"
)

// TicketUpdatedEvent carries the post-update ticket snapshot.
type TicketUpdatedEvent struct {
	TenantID string  `json:"tenantId"`
	Ticket   *Ticket `json:"ticket"`
}

// MessageCreatedEvent carries a newly created message.
type MessageCreatedEvent struct {
	TenantID string   `json:"tenantId"`
	TicketID string   `json:"ticketId"`
	Message  *Message `json:"message"`
}

// Emitter publishes domain events to the platform's event bus. Every
// mutation the agent performs through the tool executor emits exactly one
// event as part of the same logical operation.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Emitter interface {
	TicketUpdated(ctx context.Context, ev TicketUpdatedEvent)
	MessageCreated(ctx context.Context, ev MessageCreatedEvent)
}

// NopEmitter discards all events. Useful when the agent runs detached from
// the platform bus (CLI one-shots).
type NopEmitter struct{}

func (NopEmitter) TicketUpdated(context.Context, TicketUpdatedEvent)   {}
func (NopEmitter) MessageCreated(context.Context, MessageCreatedEvent) {}

// MemEmitter records events in memory. Test double.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type MemEmitter struct {
	mu             sync.Mutex
	ticketUpdated  []TicketUpdatedEvent
	messageCreated []MessageCreatedEvent
}

// NewMemEmitter returns an empty in-memory event recorder.
func NewMemEmitter() *MemEmitter { return &MemEmitter{} }

func (m *MemEmitter) TicketUpdated(_ context.Context, ev TicketUpdatedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketUpdated = append(m.ticketUpdated, ev)
}

func (m *MemEmitter) MessageCreated(_ context.Context, ev MessageCreatedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageCreated = append(m.messageCreated, ev)
}

// TicketUpdatedEvents returns a copy of the recorded ticket.updated events.
func (m *MemEmitter) TicketUpdatedEvents() []TicketUpdatedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TicketUpdatedEvent, len(m.ticketUpdated))
	copy(out, m.ticketUpdated)
	return out
}

// MessageCreatedEvents returns a copy of the recorded message.created events.
func (m *MemEmitter) MessageCreatedEvents() []MessageCreatedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageCreatedEvent, len(m.messageCreated))
	copy(out, m.messageCreated)
	return out
}
