// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"encoding/json"
	"strings"
)

// agentResponse is the shape the system prompts ask the model to emit.
// Every field is optional; defaults are applied after decoding.
type agentResponse struct {
	Action        string   `json:"action"`
	Confidence    *float64 `json:"confidence"`
	Summary       string   `json:"summary"`
	DraftReply    string   `json:"draftReply"`
	Sentiment     string   `json:"sentiment"`
	SuggestedTags []string `json:"suggestedTags"`
}

// ParseAgentResponse converts raw model output into an AgentResult.
//
// Description:
//
//	Tolerates the formatting noise models produce: fenced code blocks,
//	prose around the JSON object, missing fields, out-of-range
//	confidence. There is no failure path: any content that cannot be
//	decoded yields a needs_human result carrying the raw text as the
//	summary so no information is silently dropped. Parsing well-formed
//	result JSON is idempotent: encoding the output reproduces the input
//	field-for-field.
//
// Inputs:
//   - content: Raw assistant message content. May be empty.
//   - trail: The tool execution trail accumulated by the run; attached to
//     the result unmodified.
//
// Outputs:
//   - AgentResult: Always fully populated. Never panics, never fails.
//
// Thread Safety: This function is safe for concurrent use.
func ParseAgentResponse(content string, trail []ToolExecutionRecord) AgentResult {
	cleaned := stripFences(content)

	var parsed agentResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		summary := content
		if strings.TrimSpace(summary) == "" {
			summary = "Unable to parse agent response"
		}
		return AgentResult{
			Action:     ActionNeedsHuman,
			Confidence: 0,
			Summary:    summary,
			ToolCalls:  trail,
		}
	}

	action := Action(parsed.Action)
	if !ValidAction(action) {
		action = ActionNeedsHuman
	}

	confidence := 0.0
	if parsed.Confidence != nil {
		confidence = clampConfidence(*parsed.Confidence)
	}

	summary := parsed.Summary
	if summary == "" {
		summary = content
	}

	return AgentResult{
		Action:        action,
		Confidence:    confidence,
		Summary:       summary,
		ToolCalls:     trail,
		DraftReply:    parsed.DraftReply,
		Sentiment:     parsed.Sentiment,
		SuggestedTags: parsed.SuggestedTags,
	}
}

// stripFences removes markdown code fences that models commonly wrap JSON
// in, then isolates the outermost JSON object if prose surrounds it.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	// Models sometimes preface the object with a sentence. If the trimmed
	// text does not start with '{' but contains one, slice to the
	// outermost braces and let the decoder judge the rest.
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
