// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent implements the autonomous support agent core: a bounded
// reason-and-act loop that turns a task description into a typed decision
// by repeatedly calling a model with the ticket tool catalog, executing
// the tools it chooses, and terminating with an AgentResult.
package agent

import (
	"context"

	"github.com/ClawdeskHQ/clawdesk/services/llm"
)

// Action is the decision category an agent run terminates with.
type Action string

const (
	ActionReplied    Action = "replied"
	ActionTriaged    Action = "triaged"
	ActionEscalated  Action = "escalated"
	ActionResolved   Action = "resolved"
	ActionNeedsHuman Action = "needs_human"
)

// ValidAction reports whether a is one of the known terminal actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionReplied, ActionTriaged, ActionEscalated, ActionResolved, ActionNeedsHuman:
		return true
	}
	return false
}

// ToolExecutionRecord is one entry in the run's audit trail: a tool the
// model requested, the arguments after defensive parsing, and the string
// result the tool produced. The trail grows monotonically within one run
// and is never replayed.
type ToolExecutionRecord struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
}

// AgentResult is the single externally visible output of one orchestrator
// run. Immutable once produced. Confidence is always in [0, 1]; a missing
// value parses as 0.
type AgentResult struct {
	Action        Action                `json:"action"`
	Confidence    float64               `json:"confidence"`
	Summary       string                `json:"summary"`
	ToolCalls     []ToolExecutionRecord `json:"toolCalls"`
	DraftReply    string                `json:"draftReply,omitempty"`
	Sentiment     string                `json:"sentiment,omitempty"`
	SuggestedTags []string              `json:"suggestedTags,omitempty"`
}

// ExecutionContext carries the per-invocation context threaded through
// tool execution. Read-only during the run.
type ExecutionContext struct {
	// TenantID scopes every store read and mutation.
	TenantID string

	// Model overrides the client's default model when non-empty
	// (tenant-preferred model from configuration).
	Model string
}

// ModelClient is the orchestrator's view of the model endpoint.
// *llm.Client satisfies it; tests substitute a scripted fake.
type ModelClient interface {
	ChatWithTools(ctx context.Context, messages []llm.ChatMessage,
		params llm.GenerationParams, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error)
}

// ToolRunner executes one tool call against the ticketing domain.
//
// Execute returns the bounded JSON result string plus a flag reporting
// whether the result encodes a tool-level error. Failures are always data;
// implementations must not return control-flow errors for bad input or
// missing rows.
type ToolRunner interface {
	// Definitions returns the immutable tool catalog attached to every
	// model call.
	Definitions() []llm.ToolDef

	// Execute runs the named tool with the given argument map, scoped to
	// the tenant. The boolean is true when the result is an error payload.
	Execute(ctx context.Context, tenantID, toolName string, args map[string]any) (result string, failed bool)
}
