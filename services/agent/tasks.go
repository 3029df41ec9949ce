// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"fmt"
)

// Service exposes the role-specific agent tasks as thin wrappers over the
// orchestrator loop. Each task pairs a system prompt with a generated user
// task and runs with the default iteration budget.
//
// Thread Safety: Service is safe for concurrent use.
type Service struct {
	orch *Orchestrator
}

// NewService wraps an orchestrator in the role-task surface.
func NewService(orch *Orchestrator) *Service {
	if orch == nil {
		panic("NewService: orch must not be nil")
	}
	return &Service{orch: orch}
}

// GenerateDraftReply asks the agent to compose a reply for the ticket
// without sending it. The result's DraftReply carries the text.
func (s *Service) GenerateDraftReply(ctx context.Context, ec ExecutionContext, ticketID string) AgentResult {
	task := fmt.Sprintf("Please draft a reply for ticket %s. First use get_ticket to understand the context.", ticketID)
	return s.orch.Run(ctx, draftReplyPrompt, task, ec, DefaultMaxIterations)
}

// TriageTicket asks the agent to classify, prioritize, tag, and route the
// ticket. Mutations happen through tools during the run.
func (s *Service) TriageTicket(ctx context.Context, ec ExecutionContext, ticketID string) AgentResult {
	task := fmt.Sprintf("Triage ticket %s. Use get_ticket to start, then search_tickets for similar issues and get_contact_history for the customer's history.", ticketID)
	return s.orch.Run(ctx, triagePrompt, task, ec, DefaultMaxIterations)
}

// AttemptResolve asks the agent to resolve the ticket end to end, replying
// and closing it out when confident, escalating otherwise.
func (s *Service) AttemptResolve(ctx context.Context, ec ExecutionContext, ticketID string) AgentResult {
	task := fmt.Sprintf("Attempt to resolve ticket %s. Start by gathering context with get_ticket, search_tickets, and get_contact_history.", ticketID)
	return s.orch.Run(ctx, resolvePrompt, task, ec, DefaultMaxIterations)
}

// SummarizeTicket asks the agent for an analyst summary with action items.
// Read-only: the prompt requests no mutation tools.
func (s *Service) SummarizeTicket(ctx context.Context, ec ExecutionContext, ticketID string) AgentResult {
	task := fmt.Sprintf("Summarize ticket %s with action items.", ticketID)
	return s.orch.Run(ctx, summarizePrompt, task, ec, DefaultMaxIterations)
}

// HandleWidgetMessage answers a live chat-widget message, replying directly
// when confidence clears the tenant threshold.
func (s *Service) HandleWidgetMessage(ctx context.Context, ec ExecutionContext, ticketID, customerMessage string, confidenceThreshold float64) AgentResult {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.8
	}
	prompt := fmt.Sprintf(widgetPromptFmt, confidenceThreshold)
	task := fmt.Sprintf("Customer message on ticket %s: %q. Use get_ticket for full context.", ticketID, customerMessage)
	return s.orch.Run(ctx, prompt, task, ec, DefaultMaxIterations)
}
