// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ClawdeskHQ/clawdesk/services/agent"
	"github.com/ClawdeskHQ/clawdesk/services/config"
	"github.com/ClawdeskHQ/clawdesk/services/guardrails"
	"github.com/ClawdeskHQ/clawdesk/services/interactions"
	"github.com/ClawdeskHQ/clawdesk/services/ticketing"
)

const testTenant = "tenant-1"

// mondayNoon is inside the default Mon-Fri 09:00-17:00 UTC window.
var mondayNoon = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

// fakeTasks records which role tasks ran and returns canned results.
type fakeTasks struct {
	mu            sync.Mutex
	calls         []string
	triageResult  agent.AgentResult
	draftResult   agent.AgentResult
	widgetResult  agent.AgentResult
	resolveResult agent.AgentResult
}

func (f *fakeTasks) called(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeTasks) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTasks) GenerateDraftReply(context.Context, agent.ExecutionContext, string) agent.AgentResult {
	f.called("draft")
	return f.draftResult
}

func (f *fakeTasks) TriageTicket(context.Context, agent.ExecutionContext, string) agent.AgentResult {
	f.called("triage")
	return f.triageResult
}

func (f *fakeTasks) AttemptResolve(context.Context, agent.ExecutionContext, string) agent.AgentResult {
	f.called("resolve")
	return f.resolveResult
}

func (f *fakeTasks) SummarizeTicket(context.Context, agent.ExecutionContext, string) agent.AgentResult {
	f.called("summarize")
	return f.resolveResult
}

func (f *fakeTasks) HandleWidgetMessage(context.Context, agent.ExecutionContext, string, string, float64) agent.AgentResult {
	f.called("widget")
	return f.widgetResult
}

// staticSettings serves the same settings for every tenant.
type staticSettings struct{ s config.TenantSettings }

func (s staticSettings) Get(string) config.TenantSettings { return s.s }

// memAudit collects interaction records in memory.
type memAudit struct {
	mu      sync.Mutex
	records []interactions.Record
}

func (a *memAudit) Save(_ context.Context, rec interactions.Record) (*interactions.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return &rec, nil
}

func (a *memAudit) list() []interactions.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]interactions.Record, len(a.records))
	copy(out, a.records)
	return out
}

func enabledSettings() config.TenantSettings {
	return config.TenantSettings{
		Enabled:             true,
		Mode:                config.ModeAutonomous,
		AutoTriage:          true,
		AutoSuggest:         true,
		ConfidenceThreshold: 0.8,
		RateLimit:           5,
		RateWindow:          config.Duration(time.Hour),
	}
}

type fixture struct {
	dispatcher *Dispatcher
	tasks      *fakeTasks
	store      *ticketing.MemStore
	events     *ticketing.MemEmitter
	gate       *guardrails.TaskGate
	audit      *memAudit
}

func newFixture(t *testing.T, settings config.TenantSettings) *fixture {
	t.Helper()
	tasks := &fakeTasks{
		triageResult: agent.AgentResult{Action: agent.ActionTriaged, Confidence: 0.9, Summary: "triaged"},
		draftResult:  agent.AgentResult{Action: agent.ActionNeedsHuman, Confidence: 0.85, Summary: "drafted", DraftReply: "Here is a draft."},
		widgetResult: agent.AgentResult{Action: agent.ActionReplied, Confidence: 0.9, Summary: "replied"},
	}
	store := ticketing.NewMemStore()
	events := ticketing.NewMemEmitter()
	gate := guardrails.NewTaskGate(guardrails.NewMemoryCounter(2 * time.Hour))
	audit := &memAudit{}

	d := NewDispatcher(tasks, store, events, staticSettings{settings}, gate, audit, nil)
	d.SetClock(func() time.Time { return mondayNoon })

	return &fixture{dispatcher: d, tasks: tasks, store: store, events: events, gate: gate, audit: audit}
}

func inboundMessage(ticketID string) ticketing.Message {
	return ticketing.Message{
		TicketID:  ticketID,
		Direction: ticketing.DirectionInbound,
		Type:      ticketing.TypeText,
		Content:   "My login is broken.",
	}
}

func TestTicketCreatedTriagesWhenEnabled(t *testing.T) {
	fx := newFixture(t, enabledSettings())
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "Login broken"})

	if err := fx.dispatcher.HandleTicketCreated(context.Background(), testTenant, ticket.ID); err != nil {
		t.Fatalf("HandleTicketCreated: %v", err)
	}

	if calls := fx.tasks.callList(); len(calls) != 1 || calls[0] != "triage" {
		t.Fatalf("calls = %v, want [triage]", calls)
	}

	updated, _ := fx.store.GetTicket(context.Background(), testTenant, ticket.ID)
	triage, ok := updated.Metadata["aiTriage"].(map[string]any)
	if !ok {
		t.Fatalf("aiTriage metadata missing: %v", updated.Metadata)
	}
	if triage["action"] != agent.ActionTriaged {
		t.Errorf("aiTriage.action = %v", triage["action"])
	}

	records := fx.audit.list()
	if len(records) != 1 || records[0].Kind != "triage" || !records[0].AutoApplied {
		t.Errorf("audit records = %+v", records)
	}
}

func TestTicketCreatedSkipsDisabledTenant(t *testing.T) {
	settings := enabledSettings()
	settings.Enabled = false
	fx := newFixture(t, settings)
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x"})

	if err := fx.dispatcher.HandleTicketCreated(context.Background(), testTenant, ticket.ID); err != nil {
		t.Fatalf("HandleTicketCreated: %v", err)
	}
	if calls := fx.tasks.callList(); len(calls) != 0 {
		t.Errorf("disabled tenant must not run the agent, got %v", calls)
	}
}

func TestInboundMessageAutonomousReplies(t *testing.T) {
	fx := newFixture(t, enabledSettings())
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelEmail})

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}

	if calls := fx.tasks.callList(); len(calls) != 1 || calls[0] != "widget" {
		t.Fatalf("calls = %v, want autonomous reply", calls)
	}
	records := fx.audit.list()
	if len(records) != 1 || !records[0].AutoApplied {
		t.Errorf("autonomous reply must be recorded as auto-applied: %+v", records)
	}

	// The applied reply counts against the rate gate.
	allowed, err := fx.gate.Allow(context.Background(), ticket.ID, time.Hour, 1)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if allowed {
		t.Error("applied action should have consumed the rate budget")
	}
}

func TestInboundMessageIgnoresOutbound(t *testing.T) {
	fx := newFixture(t, enabledSettings())
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x"})

	msg := inboundMessage(ticket.ID)
	msg.Direction = ticketing.DirectionOutbound
	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, msg); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if calls := fx.tasks.callList(); len(calls) != 0 {
		t.Errorf("outbound messages must not trigger the agent, got %v", calls)
	}
}

func TestOutsideBusinessHoursDegradesToSuggestion(t *testing.T) {
	fx := newFixture(t, enabledSettings())
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelEmail})

	// Saturday: outside the default window.
	fx.dispatcher.SetClock(func() time.Time {
		return time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)
	})

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}

	// The model still runs, but in suggestion mode.
	if calls := fx.tasks.callList(); len(calls) != 1 || calls[0] != "draft" {
		t.Fatalf("calls = %v, want [draft]", calls)
	}

	msgs, _ := fx.store.ListMessages(context.Background(), testTenant, ticket.ID, 0)
	if len(msgs) != 1 || msgs[0].Type != ticketing.TypeAISuggestion {
		t.Fatalf("expected one AI_SUGGESTION message, got %v", msgs)
	}

	records := fx.audit.list()
	if len(records) == 0 || records[0].AutoApplied {
		t.Errorf("suggestion must never be auto-applied: %+v", records)
	}
}

func TestRateLimitedDegradesToSuggestion(t *testing.T) {
	settings := enabledSettings()
	settings.RateLimit = 2
	fx := newFixture(t, settings)
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelEmail})

	for i := 0; i < 2; i++ {
		if err := fx.gate.RecordAction(context.Background(), ticket.ID); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}

	if calls := fx.tasks.callList(); len(calls) != 1 || calls[0] != "draft" {
		t.Fatalf("rate-limited dispatch must still run the model in suggestion mode, got %v", calls)
	}
	records := fx.audit.list()
	if len(records) != 1 || records[0].TriggeredBy != "rate-limit" {
		t.Errorf("audit = %+v", records)
	}
}

func TestCopilotModeSuggests(t *testing.T) {
	settings := enabledSettings()
	settings.Mode = config.ModeCopilot
	fx := newFixture(t, settings)
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelEmail})

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if calls := fx.tasks.callList(); len(calls) != 1 || calls[0] != "draft" {
		t.Fatalf("calls = %v, want [draft]", calls)
	}

	evs := fx.events.MessageCreatedEvents()
	if len(evs) != 1 {
		t.Errorf("suggestion should emit message.created, got %d events", len(evs))
	}
}

func TestLowConfidenceSuggestionNotSurfaced(t *testing.T) {
	settings := enabledSettings()
	settings.Mode = config.ModeCopilot
	fx := newFixture(t, settings)
	fx.tasks.draftResult = agent.AgentResult{
		Action: agent.ActionNeedsHuman, Confidence: 0.4, Summary: "unsure", DraftReply: "Maybe this?",
	}
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelEmail})

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}

	msgs, _ := fx.store.ListMessages(context.Background(), testTenant, ticket.ID, 0)
	for _, m := range msgs {
		if m.Type == ticketing.TypeAISuggestion {
			t.Errorf("low-confidence draft must not surface as a suggestion: %v", m)
		}
	}
	// The run is still audited.
	if len(fx.audit.list()) == 0 {
		t.Error("low-confidence run must still be recorded")
	}
}

func TestWidgetChannelUsesWidgetAgent(t *testing.T) {
	settings := enabledSettings()
	settings.WidgetAgent = true
	fx := newFixture(t, settings)
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelChatWidget})

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if calls := fx.tasks.callList(); len(calls) != 1 || calls[0] != "widget" {
		t.Fatalf("calls = %v, want [widget]", calls)
	}
}

func TestWidgetResolveUpgradesToResolveAttempt(t *testing.T) {
	settings := enabledSettings()
	settings.WidgetAgent = true
	settings.WidgetResolve = true
	fx := newFixture(t, settings)
	fx.tasks.resolveResult = agent.AgentResult{Action: agent.ActionResolved, Confidence: 0.95, Summary: "resolved"}
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelChatWidget})

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if calls := fx.tasks.callList(); len(calls) != 1 || calls[0] != "resolve" {
		t.Fatalf("calls = %v, want [resolve]", calls)
	}
}

func TestNeedsHumanIsRouted(t *testing.T) {
	fx := newFixture(t, enabledSettings())
	fx.tasks.widgetResult = agent.AgentResult{
		Action: agent.ActionNeedsHuman, Confidence: 0, Summary: "Customer is angry about billing.",
	}
	ticket := fx.store.PutTicket(ticketing.Ticket{TenantID: testTenant, Subject: "x", Channel: ticketing.ChannelEmail})

	if err := fx.dispatcher.HandleInboundMessage(context.Background(), testTenant, inboundMessage(ticket.ID)); err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}

	msgs, _ := fx.store.ListMessages(context.Background(), testTenant, ticket.ID, 0)
	found := false
	for _, m := range msgs {
		if m.Type == ticketing.TypeNote && m.Metadata["needsHuman"] == true {
			found = true
		}
	}
	if !found {
		t.Error("needs_human result must leave a visible hand-off note")
	}
}
