// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools defines the constrained surface of ticketing operations
// the agent may perform: the static catalog the model sees on every call,
// and the executor that performs the corresponding domain reads and
// mutations.
package tools

import "github.com/ClawdeskHQ/clawdesk/services/llm"

// Tool names. The model can only request operations listed here; anything
// else produces an "unknown tool" error result.
const (
	ToolGetTicket          = "get_ticket"
	ToolUpdateTicket       = "update_ticket"
	ToolSendReply          = "send_reply"
	ToolAddNote            = "add_note"
	ToolSearchTickets      = "search_tickets"
	ToolGetContactHistory  = "get_contact_history"
	ToolEscalate           = "escalate"
	ToolGetCannedResponses = "get_canned_responses"
	ToolSearchKnowledge    = "search_knowledge_base"
	ToolSetTags            = "set_tags"
	ToolAssignToTeam       = "assign_to_team"
	ToolGetTeams           = "get_teams"
)

var statusEnum = []any{"OPEN", "PENDING", "RESOLVED", "CLOSED"}
var priorityEnum = []any{"LOW", "NORMAL", "HIGH", "URGENT"}

// catalog is the immutable tool surface attached to every model call.
// Pure data; behavior lives in the Executor.
var catalog = []llm.ToolDef{
	def(ToolGetTicket,
		"Get full ticket details including messages and contact info",
		params{
			"ticketId": {Type: "string", Description: "The ticket ID to fetch"},
		}, "ticketId"),
	def(ToolUpdateTicket,
		"Update ticket status, priority, or assignment",
		params{
			"ticketId":   {Type: "string"},
			"status":     {Type: "string", Enum: statusEnum},
			"priority":   {Type: "string", Enum: priorityEnum},
			"assigneeId": {Type: "string"},
		}, "ticketId"),
	def(ToolSendReply,
		"Send a reply message to the customer on a ticket",
		params{
			"ticketId": {Type: "string"},
			"content":  {Type: "string", Description: "The reply text to send to the customer"},
		}, "ticketId", "content"),
	def(ToolAddNote,
		"Add an internal note to a ticket (not visible to the customer)",
		params{
			"ticketId": {Type: "string"},
			"content":  {Type: "string", Description: "The internal note content"},
		}, "ticketId", "content"),
	def(ToolSearchTickets,
		"Search for related or similar tickets by subject or message content",
		params{
			"query":  {Type: "string", Description: "Search query to find similar tickets"},
			"status": {Type: "string", Enum: statusEnum},
			"limit":  {Type: "number", Description: "Max results (default 5)"},
		}, "query"),
	def(ToolGetContactHistory,
		"Pull a customer's past tickets and interaction history",
		params{
			"contactId": {Type: "string"},
		}, "contactId"),
	def(ToolEscalate,
		"Escalate a ticket to a human agent. Use this when the AI cannot resolve the issue or the customer requests a human.",
		params{
			"ticketId": {Type: "string"},
			"reason":   {Type: "string", Description: "Reason for escalation"},
		}, "ticketId", "reason"),
	def(ToolGetCannedResponses,
		"Retrieve saved canned responses, optionally filtered by a search query",
		params{
			"query": {Type: "string", Description: "Optional search term to filter canned responses by title or content"},
		}),
	def(ToolSearchKnowledge,
		"Search previously resolved ticket replies to find relevant answers from past support interactions",
		params{
			"query": {Type: "string", Description: "Search term to find relevant past replies"},
			"limit": {Type: "number", Description: "Max results to return (default 5)"},
		}, "query"),
	def(ToolSetTags,
		"Set or replace the tags on a ticket",
		params{
			"ticketId": {Type: "string"},
			"tags": {
				Type:        "array",
				Description: "Array of tag strings to apply to the ticket",
				Items:       &llm.ToolParamDef{Type: "string"},
			},
		}, "ticketId", "tags"),
	def(ToolAssignToTeam,
		"Assign a ticket to a specific team",
		params{
			"ticketId": {Type: "string"},
			"teamId":   {Type: "string", Description: "The ID of the team to assign the ticket to"},
		}, "ticketId", "teamId"),
	def(ToolGetTeams,
		"List all teams available in the current tenant",
		params{}),
}

type params map[string]llm.ToolParamDef

func def(name, description string, p params, required ...string) llm.ToolDef {
	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        name,
			Description: description,
			Parameters: llm.ToolParameters{
				Type:       "object",
				Properties: p,
				Required:   required,
			},
		},
	}
}

// Catalog returns the full tool catalog. The returned slice is shared and
// must be treated as read-only.
func Catalog() []llm.ToolDef { return catalog }
