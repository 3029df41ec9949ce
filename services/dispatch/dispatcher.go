// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dispatch decides whether and how the agent runs.
//
// The orchestrator itself never checks policy; this package composes the
// guardrails around it: tenant toggles, business hours, the per-ticket
// rate gate, and confidence thresholds. The key shape of every decision
// is autonomous versus suggestion. In autonomous mode the agent's tool
// calls apply directly; in suggestion mode the model still runs but its
// draft is persisted as an AI_SUGGESTION message a human must approve.
// A denial never skips the model, it only removes autonomy.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClawdeskHQ/clawdesk/services/agent"
	"github.com/ClawdeskHQ/clawdesk/services/config"
	"github.com/ClawdeskHQ/clawdesk/services/guardrails"
	"github.com/ClawdeskHQ/clawdesk/services/interactions"
	"github.com/ClawdeskHQ/clawdesk/services/ticketing"
)

// AgentTasks is the role-task surface the dispatcher drives. Satisfied by
// *agent.Service.
type AgentTasks interface {
	GenerateDraftReply(ctx context.Context, ec agent.ExecutionContext, ticketID string) agent.AgentResult
	TriageTicket(ctx context.Context, ec agent.ExecutionContext, ticketID string) agent.AgentResult
	AttemptResolve(ctx context.Context, ec agent.ExecutionContext, ticketID string) agent.AgentResult
	SummarizeTicket(ctx context.Context, ec agent.ExecutionContext, ticketID string) agent.AgentResult
	HandleWidgetMessage(ctx context.Context, ec agent.ExecutionContext, ticketID, customerMessage string, confidenceThreshold float64) agent.AgentResult
}

// SettingsSource resolves per-tenant agent settings. Satisfied by
// *config.Tenants.
type SettingsSource interface {
	Get(tenantID string) config.TenantSettings
}

// AuditStore records agent runs. Satisfied by *interactions.Store.
type AuditStore interface {
	Save(ctx context.Context, rec interactions.Record) (*interactions.Record, error)
}

// Dispatcher routes platform events and API requests into agent runs.
//
// Thread Safety: Safe for concurrent use.
type Dispatcher struct {
	tasks    AgentTasks
	store    ticketing.Store
	events   ticketing.Emitter
	settings SettingsSource
	gate     *guardrails.TaskGate
	audit    AuditStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher wires the guardrail-composing caller. Audit may be nil to
// disable the interaction trail; events may be nil to disable fan-out.
func NewDispatcher(
	tasks AgentTasks,
	store ticketing.Store,
	events ticketing.Emitter,
	settings SettingsSource,
	gate *guardrails.TaskGate,
	audit AuditStore,
	logger *slog.Logger,
) *Dispatcher {
	if tasks == nil || store == nil || settings == nil || gate == nil {
		panic("NewDispatcher: tasks, store, settings, and gate must not be nil")
	}
	if events == nil {
		events = ticketing.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		tasks:    tasks,
		store:    store,
		events:   events,
		settings: settings,
		gate:     gate,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the dispatcher's clock. Test hook.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// HandleTicketCreated triages a newly created ticket when the tenant has
// auto-triage enabled. No-op otherwise.
func (d *Dispatcher) HandleTicketCreated(ctx context.Context, tenantID, ticketID string) error {
	settings := d.settings.Get(tenantID)
	if !settings.Enabled || !settings.AutoTriage {
		return nil
	}

	result := d.tasks.TriageTicket(ctx, d.execContext(tenantID, settings), ticketID)

	if _, err := d.store.UpdateTicket(ctx, tenantID, ticketID, ticketing.TicketUpdate{
		Metadata: map[string]any{
			"aiTriage": map[string]any{
				"action":      result.Action,
				"confidence":  result.Confidence,
				"summary":     result.Summary,
				"toolCalls":   len(result.ToolCalls),
				"processedAt": d.now().UTC().Format(time.RFC3339),
			},
		},
	}); err != nil {
		d.logger.Warn("triage metadata update failed",
			slog.String("ticket_id", ticketID),
			slog.String("error", err.Error()),
		)
	}

	d.record(ctx, interactions.Record{
		TenantID:      tenantID,
		TicketID:      ticketID,
		Kind:          "triage",
		Action:        string(result.Action),
		Confidence:    result.Confidence,
		Summary:       result.Summary,
		ToolCallCount: len(result.ToolCalls),
		AutoApplied:   true,
		TriggeredBy:   "ticket.created",
	})
	dispatchTotal.WithLabelValues("ticket.created", "triage").Inc()

	if result.Action == agent.ActionNeedsHuman {
		d.routeToHuman(ctx, tenantID, ticketID, result)
	}

	d.logger.Info("triage completed",
		slog.String("ticket_id", ticketID),
		slog.String("action", string(result.Action)),
		slog.Float64("confidence", result.Confidence),
	)
	return nil
}

// HandleInboundMessage routes an inbound customer message to the right
// agent flow for the tenant: widget handling, autonomous reply, or a
// copilot suggestion. Outbound and system messages are ignored.
func (d *Dispatcher) HandleInboundMessage(ctx context.Context, tenantID string, msg ticketing.Message) error {
	if msg.Direction != ticketing.DirectionInbound {
		return nil
	}
	settings := d.settings.Get(tenantID)
	if !settings.Enabled {
		return nil
	}

	ticket, err := d.store.GetTicket(ctx, tenantID, msg.TicketID)
	if err != nil {
		return fmt.Errorf("dispatch: load ticket %s: %w", msg.TicketID, err)
	}

	switch {
	case ticket.Channel == ticketing.ChannelChatWidget && settings.WidgetAgent:
		return d.handleWidget(ctx, tenantID, settings, ticket.ID, msg.Content)

	case settings.Mode == config.ModeAutonomous:
		if !guardrails.WithinBusinessHours(settings.BusinessHours, d.now()) {
			d.logger.Info("outside business hours, degrading to suggestion",
				slog.String("ticket_id", ticket.ID),
			)
			dispatchTotal.WithLabelValues("message.created", "after_hours_suggest").Inc()
			return d.suggest(ctx, tenantID, settings, ticket.ID, "business-hours")
		}

		allowed, err := d.gate.Allow(ctx, ticket.ID, settings.RateWindow.Std(), settings.RateLimit)
		if err != nil {
			d.logger.Warn("rate gate unavailable, degrading to suggestion",
				slog.String("ticket_id", ticket.ID),
				slog.String("error", err.Error()),
			)
		}
		if !allowed {
			d.logger.Warn("rate limit reached, degrading to suggestion",
				slog.String("ticket_id", ticket.ID),
				slog.Int("limit", settings.RateLimit),
			)
			dispatchTotal.WithLabelValues("message.created", "rate_limited_suggest").Inc()
			return d.suggest(ctx, tenantID, settings, ticket.ID, "rate-limit")
		}

		dispatchTotal.WithLabelValues("message.created", "auto_reply").Inc()
		return d.autoReply(ctx, tenantID, settings, ticket.ID, msg.Content)

	case settings.AutoSuggest:
		dispatchTotal.WithLabelValues("message.created", "copilot_suggest").Inc()
		return d.suggest(ctx, tenantID, settings, ticket.ID, "copilot")
	}
	return nil
}

// handleWidget answers a live chat-widget message. The rate gate applies
// here too: a chat widget conversation partner can be a bot, and widget
// replies are as autonomous as any other.
func (d *Dispatcher) handleWidget(ctx context.Context, tenantID string, settings config.TenantSettings, ticketID, customerMessage string) error {
	allowed, err := d.gate.Allow(ctx, ticketID, settings.RateWindow.Std(), settings.RateLimit)
	if err != nil {
		d.logger.Warn("rate gate unavailable, degrading to suggestion",
			slog.String("ticket_id", ticketID),
			slog.String("error", err.Error()),
		)
	}
	if !allowed {
		dispatchTotal.WithLabelValues("message.created", "widget_rate_limited").Inc()
		return d.suggest(ctx, tenantID, settings, ticketID, "rate-limit")
	}

	var result agent.AgentResult
	kind := "widget"
	if settings.WidgetResolve {
		kind = "widget_resolve"
		result = d.tasks.AttemptResolve(ctx, d.execContext(tenantID, settings), ticketID)
	} else {
		result = d.tasks.HandleWidgetMessage(ctx, d.execContext(tenantID, settings),
			ticketID, customerMessage, settings.ConfidenceThreshold)
	}
	dispatchTotal.WithLabelValues("message.created", kind).Inc()

	d.finishAutonomous(ctx, tenantID, ticketID, kind, "widget", result)
	return nil
}

// autoReply runs the agent with full autonomy on an inbound message.
func (d *Dispatcher) autoReply(ctx context.Context, tenantID string, settings config.TenantSettings, ticketID, customerMessage string) error {
	result := d.tasks.HandleWidgetMessage(ctx, d.execContext(tenantID, settings),
		ticketID, customerMessage, settings.ConfidenceThreshold)

	d.finishAutonomous(ctx, tenantID, ticketID, "auto_reply", "message.created", result)
	return nil
}

// finishAutonomous records the outcome of an autonomous run. Applied side
// effects count against the rate gate; needs_human results get routed to
// a person.
func (d *Dispatcher) finishAutonomous(ctx context.Context, tenantID, ticketID, kind, triggeredBy string, result agent.AgentResult) {
	applied := result.Action == agent.ActionReplied || result.Action == agent.ActionResolved
	if applied {
		if err := d.gate.RecordAction(ctx, ticketID); err != nil {
			d.logger.Warn("rate gate record failed",
				slog.String("ticket_id", ticketID),
				slog.String("error", err.Error()),
			)
		}
	}

	d.record(ctx, interactions.Record{
		TenantID:      tenantID,
		TicketID:      ticketID,
		Kind:          kind,
		Action:        string(result.Action),
		Confidence:    result.Confidence,
		Summary:       result.Summary,
		ToolCallCount: len(result.ToolCalls),
		AutoApplied:   applied,
		TriggeredBy:   triggeredBy,
	})

	if result.Action == agent.ActionNeedsHuman {
		d.routeToHuman(ctx, tenantID, ticketID, result)
	}

	d.logger.Info("autonomous run completed",
		slog.String("ticket_id", ticketID),
		slog.String("kind", kind),
		slog.String("action", string(result.Action)),
		slog.Float64("confidence", result.Confidence),
		slog.Bool("auto_applied", applied),
	)
}

// suggest runs the agent in suggestion mode: the draft is persisted as an
// AI_SUGGESTION message for human approval, never sent. Low-confidence
// drafts are recorded in the audit trail but not surfaced as suggestions.
func (d *Dispatcher) suggest(ctx context.Context, tenantID string, settings config.TenantSettings, ticketID, reason string) error {
	result := d.tasks.GenerateDraftReply(ctx, d.execContext(tenantID, settings), ticketID)

	surfaced := false
	if result.DraftReply != "" && guardrails.MeetsConfidence(result.Confidence, settings.ConfidenceThreshold) {
		suggestion, err := d.store.CreateMessage(ctx, tenantID, ticketing.NewMessage{
			TicketID:  ticketID,
			Direction: ticketing.DirectionOutbound,
			Type:      ticketing.TypeAISuggestion,
			Content:   result.DraftReply,
			Metadata: map[string]any{
				"aiGenerated": true,
				"confidence":  result.Confidence,
				"summary":     result.Summary,
				"toolCalls":   len(result.ToolCalls),
				"reason":      reason,
			},
		})
		if err != nil {
			return fmt.Errorf("dispatch: persist suggestion for %s: %w", ticketID, err)
		}
		d.events.MessageCreated(ctx, ticketing.MessageCreatedEvent{
			TenantID: tenantID,
			TicketID: ticketID,
			Message:  suggestion,
		})
		surfaced = true
	}

	d.record(ctx, interactions.Record{
		TenantID:      tenantID,
		TicketID:      ticketID,
		Kind:          "suggestion",
		Action:        string(result.Action),
		Confidence:    result.Confidence,
		Summary:       result.Summary,
		ToolCallCount: len(result.ToolCalls),
		AutoApplied:   false,
		TriggeredBy:   reason,
	})

	// A surfaced suggestion already awaits human approval; the explicit
	// hand-off note is only needed when nothing was surfaced.
	if result.Action == agent.ActionNeedsHuman && !surfaced {
		d.routeToHuman(ctx, tenantID, ticketID, result)
	}

	d.logger.Info("suggestion run completed",
		slog.String("ticket_id", ticketID),
		slog.String("reason", reason),
		slog.Float64("confidence", result.Confidence),
	)
	return nil
}

// routeToHuman leaves a visible hand-off marker so a needs_human terminal
// is never silently dropped. The agent's own escalate tool already moves
// the ticket; this covers runs that end in needs_human without escalating.
func (d *Dispatcher) routeToHuman(ctx context.Context, tenantID, ticketID string, result agent.AgentResult) {
	summary := result.Summary
	if summary == "" {
		summary = "No summary available."
	}
	note, err := d.store.CreateMessage(ctx, tenantID, ticketing.NewMessage{
		TicketID:  ticketID,
		Direction: ticketing.DirectionOutbound,
		Type:      ticketing.TypeNote,
		Content:   "AI agent requests human review: " + summary,
		Metadata:  map[string]any{"aiGenerated": true, "needsHuman": true},
	})
	if err != nil {
		d.logger.Error("failed to route needs_human to an agent",
			slog.String("ticket_id", ticketID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.events.MessageCreated(ctx, ticketing.MessageCreatedEvent{
		TenantID: tenantID,
		TicketID: ticketID,
		Message:  note,
	})
	dispatchTotal.WithLabelValues("agent.result", "needs_human").Inc()
}

func (d *Dispatcher) record(ctx context.Context, rec interactions.Record) {
	if d.audit == nil {
		return
	}
	if _, err := d.audit.Save(ctx, rec); err != nil {
		d.logger.Warn("interaction audit write failed",
			slog.String("ticket_id", rec.TicketID),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) execContext(tenantID string, settings config.TenantSettings) agent.ExecutionContext {
	return agent.ExecutionContext{TenantID: tenantID, Model: settings.Model}
}
