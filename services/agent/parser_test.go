// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"strings"
	"testing"
)

func TestParseAgentResponseWellFormed(t *testing.T) {
	content := `{"action":"replied","confidence":0.92,"summary":"Answered the billing question","draftReply":"Hi, your invoice is attached.","sentiment":"neutral","suggestedTags":["billing"]}`

	result := ParseAgentResponse(content, nil)

	if result.Action != ActionReplied {
		t.Errorf("Action = %q, want %q", result.Action, ActionReplied)
	}
	if result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Confidence)
	}
	if result.Summary != "Answered the billing question" {
		t.Errorf("Summary = %q", result.Summary)
	}
	if result.DraftReply != "Hi, your invoice is attached." {
		t.Errorf("DraftReply = %q", result.DraftReply)
	}
	if result.Sentiment != "neutral" {
		t.Errorf("Sentiment = %q", result.Sentiment)
	}
	if len(result.SuggestedTags) != 1 || result.SuggestedTags[0] != "billing" {
		t.Errorf("SuggestedTags = %v", result.SuggestedTags)
	}
}

func TestParseAgentResponseFencedJSON(t *testing.T) {
	content := "```json\n{\"action\":\"triaged\",\"confidence\":0.8,\"summary\":\"Password reset\"}\n```"

	result := ParseAgentResponse(content, nil)

	if result.Action != ActionTriaged {
		t.Errorf("Action = %q, want %q", result.Action, ActionTriaged)
	}
	if result.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", result.Confidence)
	}
}

func TestParseAgentResponseProseAroundJSON(t *testing.T) {
	content := `Here is my assessment:
{"action":"escalated","confidence":0.7,"summary":"Refund dispute needs a manager"}
Let me know if you need more.`

	result := ParseAgentResponse(content, nil)

	if result.Action != ActionEscalated {
		t.Errorf("Action = %q, want %q", result.Action, ActionEscalated)
	}
	if result.Summary != "Refund dispute needs a manager" {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestParseAgentResponseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain prose", "I could not figure out what to do with this ticket."},
		{"truncated json", `{"action":"replied","confidence":`},
		{"json array", `["replied"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseAgentResponse(tt.content, nil)
			if result.Action != ActionNeedsHuman {
				t.Errorf("Action = %q, want %q", result.Action, ActionNeedsHuman)
			}
			if result.Confidence != 0 {
				t.Errorf("Confidence = %v, want 0", result.Confidence)
			}
			// Raw content survives as the summary so nothing is dropped.
			if !strings.Contains(result.Summary, tt.content[:10]) {
				t.Errorf("Summary %q does not carry the raw content", result.Summary)
			}
		})
	}
}

func TestParseAgentResponseEmptyContent(t *testing.T) {
	result := ParseAgentResponse("", nil)

	if result.Action != ActionNeedsHuman {
		t.Errorf("Action = %q, want %q", result.Action, ActionNeedsHuman)
	}
	if result.Summary != "Unable to parse agent response" {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestParseAgentResponseUnknownAction(t *testing.T) {
	result := ParseAgentResponse(`{"action":"self_destruct","confidence":0.9,"summary":"nope"}`, nil)

	if result.Action != ActionNeedsHuman {
		t.Errorf("Action = %q, want %q", result.Action, ActionNeedsHuman)
	}
}

func TestParseAgentResponseConfidenceClamped(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"above one", `{"action":"replied","confidence":1.7,"summary":"s"}`, 1},
		{"negative", `{"action":"replied","confidence":-0.2,"summary":"s"}`, 0},
		{"missing", `{"action":"replied","summary":"s"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseAgentResponse(tt.content, nil)
			if result.Confidence != tt.want {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.want)
			}
		})
	}
}

func TestParseAgentResponseMissingSummaryFallsBackToContent(t *testing.T) {
	content := `{"action":"resolved","confidence":0.85}`
	result := ParseAgentResponse(content, nil)

	if result.Summary != content {
		t.Errorf("Summary = %q, want the raw content", result.Summary)
	}
}

func TestParseAgentResponseAttachesTrail(t *testing.T) {
	trail := []ToolExecutionRecord{
		{Tool: "get_ticket", Args: map[string]any{"ticketId": "t1"}, Result: "{}"},
	}

	result := ParseAgentResponse("garbage", trail)
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Tool != "get_ticket" {
		t.Errorf("ToolCalls = %v, want the trail preserved", result.ToolCalls)
	}
}
