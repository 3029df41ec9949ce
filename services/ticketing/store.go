// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ticketing

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups when the target row does not
// exist within the caller's tenant. A row that exists in another tenant
// must produce the same error, so cross-tenant reads are indistinguishable
// from missing rows.
var ErrNotFound = errors.New("ticketing: not found")

// TicketUpdate describes a partial update to a ticket. Nil fields are left
// unchanged. Stores set ResolvedAt/ClosedAt timestamps themselves when the
// status transitions to RESOLVED/CLOSED.
type TicketUpdate struct {
	Status     *TicketStatus
	Priority   *TicketPriority
	AssigneeID *string
	TeamID     *string
	Tags       *[]string
	Metadata   map[string]any // merged key-by-key into existing metadata
}

// NewMessage describes a message to append to a ticket.
type NewMessage struct {
	TicketID  string
	Direction Direction
	Type      MessageType
	Content   string
	Metadata  map[string]any
}

// TicketMatch is one search hit, carrying an optional snippet of the
// message that matched the query.
type TicketMatch struct {
	Ticket  Ticket
	Snippet string
}

// ResolvedReply is a past outbound reply on a resolved ticket, used as
// lightweight knowledge-base material.
type ResolvedReply struct {
	MessageID     string
	TicketID      string
	TicketSubject string
	Snippet       string
	CreatedAt     time.Time
}

// Store is the agent core's view of the platform's ticket/message
// persistence. Every call is tenant-scoped. Implementations must provide
// per-row atomic mutation; the agent performs no locking of its own.
//
// Description:
//
//	The real implementation lives in the platform's API service and talks
//	to its database. This repository only ships MemStore, an in-memory
//	implementation for tests and dev mode.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// GetTicket returns the ticket by id, or ErrNotFound.
	GetTicket(ctx context.Context, tenantID, ticketID string) (*Ticket, error)

	// ListMessages returns up to limit messages on the ticket in
	// chronological order. Returns ErrNotFound if the ticket is missing.
	ListMessages(ctx context.Context, tenantID, ticketID string, limit int) ([]Message, error)

	// UpdateTicket applies a partial update and returns the updated ticket,
	// or ErrNotFound.
	UpdateTicket(ctx context.Context, tenantID, ticketID string, upd TicketUpdate) (*Ticket, error)

	// CreateMessage appends a message to a ticket, or returns ErrNotFound
	// if the ticket is missing.
	CreateMessage(ctx context.Context, tenantID string, msg NewMessage) (*Message, error)

	// SearchTickets finds tickets whose subject or message text contains
	// query (case-insensitive). An empty status matches all statuses.
	SearchTickets(ctx context.Context, tenantID, query string, status TicketStatus, limit int) ([]TicketMatch, error)

	// GetContact returns the contact by id, or ErrNotFound.
	GetContact(ctx context.Context, tenantID, contactID string) (*Contact, error)

	// ContactTickets returns up to limit of the contact's tickets, newest
	// first.
	ContactTickets(ctx context.Context, tenantID, contactID string, limit int) ([]Ticket, error)

	// ListCannedResponses returns saved responses, optionally filtered by a
	// query against title and content, most used first.
	ListCannedResponses(ctx context.Context, tenantID, query string, limit int) ([]CannedResponse, error)

	// SearchResolvedReplies returns outbound replies from resolved tickets
	// that contain query, newest first.
	SearchResolvedReplies(ctx context.Context, tenantID, query string, limit int) ([]ResolvedReply, error)

	// GetTeam returns the team by id, or ErrNotFound.
	GetTeam(ctx context.Context, tenantID, teamID string) (*Team, error)

	// ListTeams returns all teams in the tenant.
	ListTeams(ctx context.Context, tenantID string) ([]Team, error)
}
