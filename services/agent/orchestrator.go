// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ClawdeskHQ/clawdesk/services/llm"
)

// tracerName is the OTel tracer name for orchestrator spans.
const tracerName = "clawdesk.agent"

// DefaultMaxIterations caps the reason-and-act loop when the caller does
// not specify a budget. Bounds both cost and worst-case latency against a
// model that keeps requesting tools.
const DefaultMaxIterations = 10

// maxConsecutiveToolFailures terminates the loop early when this many
// assistant turns in a row produced only failing tool calls. The model is
// given two chances to self-correct (retry with fixed arguments, try a
// different tool); a third all-error turn routes to a human instead of
// burning the remaining iteration budget.
const maxConsecutiveToolFailures = 3

// defaultTemperature keeps tool selection near-deterministic.
var defaultTemperature = float32(0.3)

// Orchestrator drives the bounded reason-and-act loop.
//
// Description:
//
//	One Run is a single sequential logical task: model calls and tool
//	executions are strictly ordered because each step's prompt depends on
//	the prior step's observations. The orchestrator holds no mutable
//	state between runs, so any number of runs may execute concurrently
//	over the same instance.
//
// Thread Safety: Orchestrator is safe for concurrent use.
type Orchestrator struct {
	client ModelClient
	tools  ToolRunner
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
//
// Inputs:
//   - client: The model endpoint. Must not be nil.
//   - tools: The tool runner. Must not be nil.
//   - logger: Logger for loop diagnostics. May be nil (defaults to
//     slog.Default).
func NewOrchestrator(client ModelClient, tools ToolRunner, logger *slog.Logger) *Orchestrator {
	if client == nil {
		panic("NewOrchestrator: client must not be nil")
	}
	if tools == nil {
		panic("NewOrchestrator: tools must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{client: client, tools: tools, logger: logger}
}

// Run executes the agent loop and returns a typed decision.
//
// Description:
//
//	Seeds the transcript with the system prompt and user task, then loops
//	up to maxIterations times: call the model with the full transcript
//	and tool catalog; if the assistant answers with plain content, parse
//	it as the final decision; if it requests tools, execute each in
//	order, append the results to the transcript, and continue. Tool
//	results are never treated as the final answer; the model must
//	explicitly respond without tool calls to terminate.
//
//	Run never fails and never panics on model misbehavior: every failure
//	mode degrades to a needs_human result with confidence 0 and a
//	summary naming the cause. The accumulated tool trail is attached to
//	every terminal result, including error terminals, so no work is lost.
//
//	Cancellation: ctx is checked before every model call, so a caller
//	deadline bounds wall-clock time even within the iteration cap.
//
// Inputs:
//   - ctx: Context for cancellation and deadline.
//   - systemPrompt: Role-specific instructions.
//   - userTask: The task description.
//   - ec: Per-invocation execution context (tenant scope, model override).
//   - maxIterations: Loop budget. Values < 1 use DefaultMaxIterations.
//
// Outputs:
//   - AgentResult: The typed decision. Always fully populated.
//
// Thread Safety: This method is safe for concurrent use.
func (o *Orchestrator) Run(ctx context.Context, systemPrompt, userTask string, ec ExecutionContext, maxIterations int) AgentResult {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", ec.TenantID),
		attribute.Int("max_iterations", maxIterations),
	)

	start := time.Now()
	transcript := []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userTask},
	}
	trail := make([]ToolExecutionRecord, 0, 8)
	catalog := o.tools.Definitions()
	params := llm.GenerationParams{
		Temperature:   &defaultTemperature,
		ModelOverride: ec.Model,
	}

	finish := func(r AgentResult) AgentResult {
		span.SetAttributes(
			attribute.String("action", string(r.Action)),
			attribute.Float64("confidence", r.Confidence),
			attribute.Int("tool_calls", len(r.ToolCalls)),
		)
		recordRun(string(r.Action), len(r.ToolCalls), time.Since(start))
		return r
	}

	consecutiveFailedTurns := 0

	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("agent run canceled",
				slog.String("tenant_id", ec.TenantID),
				slog.Int("iteration", i),
				slog.String("error", err.Error()),
			)
			return finish(AgentResult{
				Action:     ActionNeedsHuman,
				Confidence: 0,
				Summary:    "Agent run canceled: " + err.Error(),
				ToolCalls:  trail,
			})
		}

		resp, err := o.client.ChatWithTools(ctx, transcript, params, catalog)
		if err != nil {
			o.logger.Warn("model call failed",
				slog.String("tenant_id", ec.TenantID),
				slog.Int("iteration", i),
				slog.String("error", llm.SafeLogString(err.Error())),
			)
			return finish(AgentResult{
				Action:     ActionNeedsHuman,
				Confidence: 0,
				Summary:    "Failed to get response from model endpoint",
				ToolCalls:  trail,
			})
		}

		if resp.Content == "" && len(resp.ToolCalls) == 0 {
			return finish(AgentResult{
				Action:     ActionNeedsHuman,
				Confidence: 0,
				Summary:    "Empty response from model endpoint",
				ToolCalls:  trail,
			})
		}

		// Append the assistant turn before acting on it so a tool-role
		// message never appears without its originating tool call.
		transcript = append(transcript, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			// Terminal state: plain content is the final answer.
			return finish(ParseAgentResponse(resp.Content, trail))
		}

		turnFailures := 0
		for _, tc := range resp.ToolCalls {
			args := tc.ArgumentsMap()

			o.logger.Debug("agent calling tool",
				slog.String("tenant_id", ec.TenantID),
				slog.String("tool", tc.Name),
				slog.Int("iteration", i),
			)

			result, failed := o.tools.Execute(ctx, ec.TenantID, tc.Name, args)
			if failed {
				turnFailures++
			}

			trail = append(trail, ToolExecutionRecord{Tool: tc.Name, Args: args, Result: result})
			transcript = append(transcript, llm.ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}

		if turnFailures == len(resp.ToolCalls) {
			consecutiveFailedTurns++
		} else {
			consecutiveFailedTurns = 0
		}

		if consecutiveFailedTurns >= maxConsecutiveToolFailures {
			o.logger.Warn("agent run aborted after repeated tool failures",
				slog.String("tenant_id", ec.TenantID),
				slog.Int("consecutive_failed_turns", consecutiveFailedTurns),
			)
			return finish(AgentResult{
				Action:     ActionNeedsHuman,
				Confidence: 0,
				Summary:    "Agent aborted after repeated tool failures",
				ToolCalls:  trail,
			})
		}
	}

	return finish(AgentResult{
		Action:     ActionNeedsHuman,
		Confidence: 0,
		Summary:    "Agent reached maximum iterations without completing",
		ToolCalls:  trail,
	})
}
