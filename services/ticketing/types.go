// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ticketing defines the domain model and the narrow interfaces the
// agent core uses to reach the platform's ticket/message store and domain
// event bus. Persistence itself (SQL schema, CRUD API, channel adapters)
// lives outside this repository; the agent only ever sees these interfaces.
package ticketing

import "time"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen     TicketStatus = "OPEN"
	StatusPending  TicketStatus = "PENDING"
	StatusResolved TicketStatus = "RESOLVED"
	StatusClosed   TicketStatus = "CLOSED"
)

// ValidStatus reports whether s is one of the known ticket statuses.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case StatusOpen, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// TicketPriority is the urgency level of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityNormal TicketPriority = "NORMAL"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Channel identifies the inbound channel a ticket arrived on.
type Channel string

const (
	ChannelEmail      Channel = "EMAIL"
	ChannelDiscord    Channel = "DISCORD"
	ChannelTelegram   Channel = "TELEGRAM"
	ChannelChatWidget Channel = "CHAT_WIDGET"
)

// Direction indicates whether a message came from the customer or went to them.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// MessageType classifies a message on a ticket.
//
// TypeText is a regular customer-visible message. TypeNote is an internal
// note. TypeAISuggestion is a draft produced by the agent awaiting human
// approval. TypeSystem is an automated audit entry (e.g. escalation records).
type MessageType string

const (
	TypeText         MessageType = "TEXT"
	TypeNote         MessageType = "NOTE"
	TypeAISuggestion MessageType = "AI_SUGGESTION"
	TypeSystem       MessageType = "SYSTEM"
)

// Ticket is one support case within a tenant.
//
// Thread Safety: Ticket values returned by a Store are snapshots owned by
// the caller; mutation ordering for concurrent writers is the store's
// responsibility, not the caller's.
type Ticket struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	Subject    string         `json:"subject"`
	Status     TicketStatus   `json:"status"`
	Priority   TicketPriority `json:"priority"`
	Channel    Channel        `json:"channel"`
	Tags       []string       `json:"tags,omitempty"`
	ContactID  string         `json:"contactId,omitempty"`
	AssigneeID string         `json:"assigneeId,omitempty"`
	TeamID     string         `json:"teamId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	ClosedAt   *time.Time     `json:"closedAt,omitempty"`
}

// Message is one entry in a ticket's conversation history.
type Message struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	TicketID  string         `json:"ticketId"`
	Direction Direction      `json:"direction"`
	Type      MessageType    `json:"messageType"`
	Content   string         `json:"contentText"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Contact is the customer a ticket belongs to.
type Contact struct {
	ID       string         `json:"id"`
	TenantID string         `json:"tenantId"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Team is a group of human agents tickets can be routed to.
type Team struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CannedResponse is a saved reply template maintained by the tenant.
type CannedResponse struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Shortcut   string `json:"shortcut,omitempty"`
	UsageCount int    `json:"usageCount"`
}
