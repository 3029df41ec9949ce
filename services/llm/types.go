// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the chat-completion client the agent orchestrator
// uses to reach the model endpoint, plus the provider-agnostic message and
// tool types exchanged with it. The wire format follows the OpenAI function
// calling schema, which every gateway the platform supports speaks.
package llm

import "encoding/json"

// ToolDef is a tool definition attached to every model call so the model
// knows what it may invoke. Immutable once built.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Type is the tool type. Always "function".
	Type string `json:"type"`

	// Function contains the function definition.
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name, description, and parameter schema.
type ToolFunction struct {
	// Name is the function name the model will call.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description"`

	// Parameters defines the JSON Schema for function parameters.
	Parameters ToolParameters `json:"parameters"`
}

// ToolParameters defines the JSON Schema for tool parameters.
type ToolParameters struct {
	// Type is the JSON Schema type. Always "object" for tool parameters.
	Type string `json:"type"`

	// Properties maps parameter names to their definitions.
	Properties map[string]ToolParamDef `json:"properties,omitempty"`

	// Required lists parameter names that must be provided.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single parameter in JSON Schema format.
type ToolParamDef struct {
	// Type is the JSON Schema type (string, integer, number, boolean, array).
	Type string `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description,omitempty"`

	// Enum restricts values to a set of options.
	Enum []any `json:"enum,omitempty"`

	// Items describes array element types when Type is "array".
	Items *ToolParamDef `json:"items,omitempty"`
}

// ChatMessage is one entry in the orchestrator's transcript.
//
// Description:
//
//	Regular messages use Role + Content. Tool results include ToolCallID,
//	linking them back to the assistant tool call they answer. Assistant
//	messages that request tools carry ToolCalls. The transcript is owned
//	by a single orchestrator run and never persisted between runs.
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is the message role: "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (for assistant messages).
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// ToolCallID links this message back to a specific tool call
	// (for tool result messages).
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCallResponse is a structured tool-call request from the model.
//
// Arguments is untrusted model output; callers must parse it defensively
// and treat malformed JSON as an empty argument map.
//
// Thread Safety: ToolCallResponse is safe for concurrent read access.
type ToolCallResponse struct {
	// ID is the unique identifier for this tool call.
	ID string `json:"id"`

	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments for the function.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsMap parses the raw arguments into a map, degrading to an empty
// map on any decode failure. Never returns nil and never fails: a garbled
// argument payload surfaces later as a tool-level "missing field" error,
// not as a loop abort.
func (t *ToolCallResponse) ArgumentsMap() map[string]any {
	out := make(map[string]any)
	if len(t.Arguments) == 0 {
		return out
	}
	raw := t.Arguments
	// Some gateways double-encode arguments as a JSON string.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return out
		}
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return make(map[string]any)
	}
	return out
}

// ArgumentsString returns the arguments as a JSON string, "{}" when empty.
func (t *ToolCallResponse) ArgumentsString() string {
	if len(t.Arguments) == 0 {
		return "{}"
	}
	if t.Arguments[0] == '"' {
		var s string
		if err := json.Unmarshal(t.Arguments, &s); err == nil {
			return s
		}
	}
	return string(t.Arguments)
}

// ChatWithToolsResult is the model's reply to one transcript submission:
// plain assistant content, one or more tool calls, or both.
//
// Thread Safety: ChatWithToolsResult is safe for concurrent read access.
type ChatWithToolsResult struct {
	// Content is the text response (may be empty if only tool calls).
	Content string

	// ToolCalls contains tool calls from the model, in the order returned.
	ToolCalls []ToolCallResponse

	// StopReason indicates why generation stopped.
	// Values: "end" (normal completion) or "tool_use" (tool calls present).
	StopReason string
}

// GenerationParams holds per-request generation options.
type GenerationParams struct {
	// Temperature controls randomness. Nil uses the endpoint default.
	Temperature *float32

	// MaxTokens limits the response length. Nil uses the endpoint default.
	MaxTokens *int

	// ModelOverride selects a model for this request instead of the
	// client's default (tenant-preferred model).
	ModelOverride string
}
