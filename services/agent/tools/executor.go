// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClawdeskHQ/clawdesk/services/llm"
	"github.com/ClawdeskHQ/clawdesk/services/ticketing"
)

// maxResultBytes bounds every tool result string. Results feed back into
// the transcript, so an unbounded payload would blow up the context window
// for every subsequent iteration.
const maxResultBytes = 8 * 1024

// historyMessageLimit caps how many conversation messages get_ticket
// includes.
const historyMessageLimit = 20

// Executor performs the domain operation behind each catalog tool.
//
// Description:
//
//	Input is the loosely typed argument map the model produced, already
//	defensively parsed. Output is always a bounded JSON string: success
//	payloads and error payloads alike. Execution failures inside a tool
//	are captured as {"error": ...} data so one failed call cannot abort
//	the loop. Side-effecting tools perform exactly one store mutation and
//	emit the matching domain event as part of the same logical operation.
//
// Thread Safety: Executor is safe for concurrent use; all state lives in
// the store behind it.
type Executor struct {
	store  ticketing.Store
	events ticketing.Emitter
	logger *slog.Logger
}

// NewExecutor creates an Executor over the given store and event emitter.
// A nil emitter disables event fan-out (CLI one-shots); a nil logger uses
// slog.Default.
func NewExecutor(store ticketing.Store, events ticketing.Emitter, logger *slog.Logger) *Executor {
	if store == nil {
		panic("NewExecutor: store must not be nil")
	}
	if events == nil {
		events = ticketing.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, events: events, logger: logger}
}

// Definitions returns the immutable tool catalog.
func (e *Executor) Definitions() []llm.ToolDef { return Catalog() }

// Execute runs one tool call scoped to the tenant.
//
// Outputs:
//   - string: Bounded JSON result. Never empty.
//   - bool: True when the result encodes a tool-level error (unknown tool,
//     missing argument, not-found, store failure).
//
// Thread Safety: This method is safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, tenantID, toolName string, args map[string]any) (string, bool) {
	var result string
	var failed bool

	switch toolName {
	case ToolGetTicket:
		result, failed = e.getTicket(ctx, tenantID, args)
	case ToolUpdateTicket:
		result, failed = e.updateTicket(ctx, tenantID, args)
	case ToolSendReply:
		result, failed = e.createMessage(ctx, tenantID, args, ticketing.TypeText)
	case ToolAddNote:
		result, failed = e.createMessage(ctx, tenantID, args, ticketing.TypeNote)
	case ToolSearchTickets:
		result, failed = e.searchTickets(ctx, tenantID, args)
	case ToolGetContactHistory:
		result, failed = e.getContactHistory(ctx, tenantID, args)
	case ToolEscalate:
		result, failed = e.escalate(ctx, tenantID, args)
	case ToolGetCannedResponses:
		result, failed = e.getCannedResponses(ctx, tenantID, args)
	case ToolSearchKnowledge:
		result, failed = e.searchKnowledgeBase(ctx, tenantID, args)
	case ToolSetTags:
		result, failed = e.setTags(ctx, tenantID, args)
	case ToolAssignToTeam:
		result, failed = e.assignToTeam(ctx, tenantID, args)
	case ToolGetTeams:
		result, failed = e.getTeams(ctx, tenantID)
	default:
		result, failed = errorResult("Unknown tool: %s", toolName)
	}

	status := "success"
	if failed {
		status = "error"
	}
	toolExecutionsTotal.WithLabelValues(toolName, status).Inc()

	return truncate(result), failed
}

// -----------------------------------------------------------------------------
// Read Tools
// -----------------------------------------------------------------------------

func (e *Executor) getTicket(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	ticketID, ok := strArg(args, "ticketId")
	if !ok {
		return errorResult("Missing required argument: ticketId")
	}

	t, err := e.store.GetTicket(ctx, tenantID, ticketID)
	if err != nil {
		return storeError("Ticket", err)
	}
	msgs, err := e.store.ListMessages(ctx, tenantID, ticketID, historyMessageLimit)
	if err != nil {
		return storeError("Ticket", err)
	}

	type msgView struct {
		ID        string    `json:"id"`
		Direction string    `json:"direction"`
		Type      string    `json:"messageType"`
		Content   string    `json:"contentText"`
		CreatedAt time.Time `json:"createdAt"`
	}
	views := make([]msgView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, msgView{
			ID:        m.ID,
			Direction: string(m.Direction),
			Type:      string(m.Type),
			Content:   clip(m.Content, 500),
			CreatedAt: m.CreatedAt,
		})
	}

	var contact *ticketing.Contact
	if t.ContactID != "" {
		contact, _ = e.store.GetContact(ctx, tenantID, t.ContactID)
	}
	var team *ticketing.Team
	if t.TeamID != "" {
		team, _ = e.store.GetTeam(ctx, tenantID, t.TeamID)
	}

	return jsonResult(map[string]any{
		"id":         t.ID,
		"subject":    t.Subject,
		"status":     t.Status,
		"priority":   t.Priority,
		"channel":    t.Channel,
		"tags":       t.Tags,
		"contact":    contact,
		"assigneeId": t.AssigneeID,
		"team":       team,
		"createdAt":  t.CreatedAt,
		"messages":   views,
		"metadata":   t.Metadata,
	})
}

func (e *Executor) searchTickets(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	query, ok := strArg(args, "query")
	if !ok {
		return errorResult("Missing required argument: query")
	}
	limit := intArg(args, "limit", 5)
	status := ticketing.TicketStatus(optStrArg(args, "status"))
	if status != "" && !ticketing.ValidStatus(status) {
		return errorResult("Invalid status: %s", status)
	}

	matches, err := e.store.SearchTickets(ctx, tenantID, query, status, limit)
	if err != nil {
		return errorResult("Search failed: %v", err)
	}

	type hit struct {
		ID              string    `json:"id"`
		Subject         string    `json:"subject"`
		Status          string    `json:"status"`
		Priority        string    `json:"priority"`
		CreatedAt       time.Time `json:"createdAt"`
		Tags            []string  `json:"tags,omitempty"`
		MatchingSnippet string    `json:"matchingSnippet,omitempty"`
	}
	hits := make([]hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, hit{
			ID:              m.Ticket.ID,
			Subject:         m.Ticket.Subject,
			Status:          string(m.Ticket.Status),
			Priority:        string(m.Ticket.Priority),
			CreatedAt:       m.Ticket.CreatedAt,
			Tags:            m.Ticket.Tags,
			MatchingSnippet: m.Snippet,
		})
	}
	return jsonResult(map[string]any{"tickets": hits})
}

func (e *Executor) getContactHistory(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	contactID, ok := strArg(args, "contactId")
	if !ok {
		return errorResult("Missing required argument: contactId")
	}
	c, err := e.store.GetContact(ctx, tenantID, contactID)
	if err != nil {
		return storeError("Contact", err)
	}
	tickets, err := e.store.ContactTickets(ctx, tenantID, contactID, 10)
	if err != nil {
		return errorResult("History lookup failed: %v", err)
	}

	type ticketView struct {
		ID         string     `json:"id"`
		Subject    string     `json:"subject"`
		Status     string     `json:"status"`
		Priority   string     `json:"priority"`
		CreatedAt  time.Time  `json:"createdAt"`
		ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	}
	views := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, ticketView{
			ID:         t.ID,
			Subject:    t.Subject,
			Status:     string(t.Status),
			Priority:   string(t.Priority),
			CreatedAt:  t.CreatedAt,
			ResolvedAt: t.ResolvedAt,
		})
	}
	return jsonResult(map[string]any{
		"contact": map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"email":       c.Email,
			"ticketCount": len(views),
			"tickets":     views,
		},
	})
}

func (e *Executor) getCannedResponses(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	query := optStrArg(args, "query")
	responses, err := e.store.ListCannedResponses(ctx, tenantID, query, 10)
	if err != nil {
		return errorResult("Canned response lookup failed: %v", err)
	}
	type view struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		Shortcut string `json:"shortcut,omitempty"`
	}
	views := make([]view, 0, len(responses))
	for _, r := range responses {
		views = append(views, view{ID: r.ID, Title: r.Title, Content: clip(r.Content, 500), Shortcut: r.Shortcut})
	}
	return jsonResult(map[string]any{"cannedResponses": views})
}

func (e *Executor) searchKnowledgeBase(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	query, ok := strArg(args, "query")
	if !ok {
		return errorResult("Missing required argument: query")
	}
	limit := intArg(args, "limit", 5)
	replies, err := e.store.SearchResolvedReplies(ctx, tenantID, query, limit)
	if err != nil {
		return errorResult("Knowledge base search failed: %v", err)
	}
	type view struct {
		MessageID     string    `json:"messageId"`
		TicketID      string    `json:"ticketId"`
		TicketSubject string    `json:"ticketSubject"`
		Snippet       string    `json:"snippet"`
		CreatedAt     time.Time `json:"createdAt"`
	}
	views := make([]view, 0, len(replies))
	for _, r := range replies {
		views = append(views, view{
			MessageID:     r.MessageID,
			TicketID:      r.TicketID,
			TicketSubject: r.TicketSubject,
			Snippet:       r.Snippet,
			CreatedAt:     r.CreatedAt,
		})
	}
	return jsonResult(map[string]any{"results": views})
}

func (e *Executor) getTeams(ctx context.Context, tenantID string) (string, bool) {
	teams, err := e.store.ListTeams(ctx, tenantID)
	if err != nil {
		return errorResult("Team lookup failed: %v", err)
	}
	return jsonResult(map[string]any{"teams": teams})
}

// -----------------------------------------------------------------------------
// Mutation Tools
// -----------------------------------------------------------------------------

func (e *Executor) updateTicket(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	ticketID, ok := strArg(args, "ticketId")
	if !ok {
		return errorResult("Missing required argument: ticketId")
	}

	var upd ticketing.TicketUpdate
	if s := optStrArg(args, "status"); s != "" {
		status := ticketing.TicketStatus(s)
		if !ticketing.ValidStatus(status) {
			return errorResult("Invalid status: %s", s)
		}
		upd.Status = &status
	}
	if p := optStrArg(args, "priority"); p != "" {
		priority := ticketing.TicketPriority(p)
		if !ticketing.ValidPriority(priority) {
			return errorResult("Invalid priority: %s", p)
		}
		upd.Priority = &priority
	}
	if a := optStrArg(args, "assigneeId"); a != "" {
		upd.AssigneeID = &a
	}

	updated, err := e.store.UpdateTicket(ctx, tenantID, ticketID, upd)
	if err != nil {
		return storeError("Ticket", err)
	}

	e.events.TicketUpdated(ctx, ticketing.TicketUpdatedEvent{TenantID: tenantID, Ticket: updated})

	return jsonResult(map[string]any{
		"success": true,
		"ticket": map[string]any{
			"id":         updated.ID,
			"status":     updated.Status,
			"priority":   updated.Priority,
			"assigneeId": updated.AssigneeID,
		},
	})
}

func (e *Executor) createMessage(ctx context.Context, tenantID string, args map[string]any, msgType ticketing.MessageType) (string, bool) {
	ticketID, ok := strArg(args, "ticketId")
	if !ok {
		return errorResult("Missing required argument: ticketId")
	}
	content, ok := strArg(args, "content")
	if !ok {
		return errorResult("Missing required argument: content")
	}

	msg, err := e.store.CreateMessage(ctx, tenantID, ticketing.NewMessage{
		TicketID:  ticketID,
		Direction: ticketing.DirectionOutbound,
		Type:      msgType,
		Content:   content,
		Metadata:  map[string]any{"aiGenerated": true},
	})
	if err != nil {
		return storeError("Ticket", err)
	}

	e.events.MessageCreated(ctx, ticketing.MessageCreatedEvent{
		TenantID: tenantID,
		TicketID: ticketID,
		Message:  msg,
	})

	return jsonResult(map[string]any{"success": true, "messageId": msg.ID})
}

func (e *Executor) escalate(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	ticketID, ok := strArg(args, "ticketId")
	if !ok {
		return errorResult("Missing required argument: ticketId")
	}
	reason, ok := strArg(args, "reason")
	if !ok {
		return errorResult("Missing required argument: reason")
	}

	// The designated off-ramp from autonomy: force the ticket back to an
	// open, human-attention state and leave an audit record of why.
	status := ticketing.StatusOpen
	updated, err := e.store.UpdateTicket(ctx, tenantID, ticketID, ticketing.TicketUpdate{
		Status: &status,
		Metadata: map[string]any{
			"escalation": map[string]any{
				"reason":      reason,
				"escalatedAt": time.Now().UTC().Format(time.RFC3339),
				"escalatedBy": "ai-agent",
			},
		},
	})
	if err != nil {
		return storeError("Ticket", err)
	}

	if _, err := e.store.CreateMessage(ctx, tenantID, ticketing.NewMessage{
		TicketID:  ticketID,
		Direction: ticketing.DirectionOutbound,
		Type:      ticketing.TypeSystem,
		Content:   fmt.Sprintf("Escalated to human agent. Reason: %s", reason),
	}); err != nil {
		e.logger.Warn("escalation audit message failed",
			slog.String("ticket_id", ticketID),
			slog.String("error", err.Error()),
		)
	}

	e.events.TicketUpdated(ctx, ticketing.TicketUpdatedEvent{TenantID: tenantID, Ticket: updated})

	return jsonResult(map[string]any{"success": true, "escalated": true, "reason": reason})
}

func (e *Executor) setTags(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	ticketID, ok := strArg(args, "ticketId")
	if !ok {
		return errorResult("Missing required argument: ticketId")
	}
	tags, ok := strsArg(args, "tags")
	if !ok {
		return errorResult("Missing required argument: tags")
	}

	updated, err := e.store.UpdateTicket(ctx, tenantID, ticketID, ticketing.TicketUpdate{Tags: &tags})
	if err != nil {
		return storeError("Ticket", err)
	}

	e.events.TicketUpdated(ctx, ticketing.TicketUpdatedEvent{TenantID: tenantID, Ticket: updated})

	return jsonResult(map[string]any{"success": true, "ticketId": updated.ID, "tags": updated.Tags})
}

func (e *Executor) assignToTeam(ctx context.Context, tenantID string, args map[string]any) (string, bool) {
	ticketID, ok := strArg(args, "ticketId")
	if !ok {
		return errorResult("Missing required argument: ticketId")
	}
	teamID, ok := strArg(args, "teamId")
	if !ok {
		return errorResult("Missing required argument: teamId")
	}

	if _, err := e.store.GetTeam(ctx, tenantID, teamID); err != nil {
		return storeError("Team", err)
	}

	updated, err := e.store.UpdateTicket(ctx, tenantID, ticketID, ticketing.TicketUpdate{TeamID: &teamID})
	if err != nil {
		return storeError("Ticket", err)
	}

	e.events.TicketUpdated(ctx, ticketing.TicketUpdatedEvent{TenantID: tenantID, Ticket: updated})

	return jsonResult(map[string]any{"success": true, "ticketId": updated.ID, "teamId": updated.TeamID})
}

// -----------------------------------------------------------------------------
// Argument Coercion & Result Helpers
// -----------------------------------------------------------------------------

func strArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func optStrArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg coerces a numeric argument. JSON decoding yields float64; some
// models also emit numbers as strings, which callers treat as absent.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}

func strsArg(args map[string]any, key string) ([]string, bool) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func jsonResult(v any) (string, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"Failed to encode tool result"}`, true
	}
	return string(b), false
}

func errorResult(format string, args ...any) (string, bool) {
	b, _ := json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
	return string(b), true
}

// storeError maps store failures to a tool-level error payload. Not-found
// (including cross-tenant lookups, which the store reports identically)
// gets a stable message the model can react to.
func storeError(entity string, err error) (string, bool) {
	if errors.Is(err, ticketing.ErrNotFound) {
		return errorResult("%s not found", entity)
	}
	return errorResult("%s lookup failed: %v", entity, err)
}

func truncate(s string) string {
	if len(s) <= maxResultBytes {
		return s
	}
	return s[:maxResultBytes]
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
