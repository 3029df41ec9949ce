// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// taskRequest is the payload for the POST /v1/agent/* task endpoints.
type taskRequest struct {
	TenantID            string  `json:"tenantId"`
	TicketID            string  `json:"ticketId"`
	Model               string  `json:"model,omitempty"`
	Message             string  `json:"message,omitempty"`
	ConfidenceThreshold float64 `json:"confidenceThreshold,omitempty"`
}

// toolCallRecord mirrors one entry of the agent result's tool trace.
type toolCallRecord struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
}

// agentResult mirrors the server's task response.
type agentResult struct {
	Action        string           `json:"action"`
	Confidence    float64          `json:"confidence"`
	Summary       string           `json:"summary"`
	ToolCalls     []toolCallRecord `json:"toolCalls"`
	DraftReply    string           `json:"draftReply,omitempty"`
	Sentiment     string           `json:"sentiment,omitempty"`
	SuggestedTags []string         `json:"suggestedTags,omitempty"`
}

// interactionRecord mirrors one audit trail entry.
type interactionRecord struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Action        string    `json:"action"`
	Confidence    float64   `json:"confidence"`
	Summary       string    `json:"summary"`
	ToolCallCount int       `json:"toolCallCount"`
	AutoApplied   bool      `json:"autoApplied"`
	TriggeredBy   string    `json:"triggeredBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

func runTriageCommand(_ *cobra.Command, args []string) {
	runAgentTask("triage", args[0], "")
}

func runDraftCommand(_ *cobra.Command, args []string) {
	runAgentTask("draft", args[0], "")
}

func runResolveCommand(_ *cobra.Command, args []string) {
	runAgentTask("resolve", args[0], "")
}

func runSummarizeCommand(_ *cobra.Command, args []string) {
	runAgentTask("summarize", args[0], "")
}

func runWidgetCommand(_ *cobra.Command, args []string) {
	message := strings.Join(args[1:], " ")
	runAgentTask("widget", args[0], message)
}

// runAgentTask submits one task request and prints the result. The agent
// loop runs server-side; there is no client-side tool loop.
func runAgentTask(task, ticketID, message string) {
	if tenantFlag == "" {
		log.Fatalf("--tenant is required")
	}

	payload := taskRequest{
		TenantID: tenantFlag,
		TicketID: ticketID,
		Model:    modelFlag,
	}
	if task == "widget" {
		payload.Message = message
		payload.ConfidenceThreshold = thresholdFlag
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("failed to build request: %v", err)
	}

	taskURL := fmt.Sprintf("%s/v1/agent/%s", getAgentBaseURL(), task)
	fmt.Printf("Running %s on ticket %s (tenant %s)\n", task, ticketID, tenantFlag)

	stop := startSpinner("Working")
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(taskURL, "application/json", bytes.NewReader(body))
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: agent service unavailable at %s\n", taskURL)
		fmt.Fprintf(os.Stderr, "Start it with: agentd -config config.yaml\n")
		fmt.Fprintf(os.Stderr, "Or set CLAWDESK_AGENT_URL to override the default address.\n")
		log.Fatalf("connection failed: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("failed to close response body: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("agent error (HTTP %d): %s", resp.StatusCode, string(raw))
	}

	var result agentResult
	if err := json.Unmarshal(raw, &result); err != nil {
		log.Printf("Raw response: %s", string(raw))
		log.Fatalf("failed to decode agent response: %v", err)
	}

	printAgentResult(result)
}

func printAgentResult(result agentResult) {
	fmt.Println("---")
	fmt.Printf("Action:     %s\n", result.Action)
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	if result.Sentiment != "" {
		fmt.Printf("Sentiment:  %s\n", result.Sentiment)
	}
	if len(result.SuggestedTags) > 0 {
		fmt.Printf("Tags:       %s\n", strings.Join(result.SuggestedTags, ", "))
	}
	if result.Summary != "" {
		fmt.Printf("\nSummary:\n%s\n", result.Summary)
	}
	if result.DraftReply != "" {
		fmt.Printf("\nDraft reply (not sent):\n%s\n", result.DraftReply)
	}
	if len(result.ToolCalls) > 0 {
		fmt.Printf("\nTool calls:\n")
		for i, tc := range result.ToolCalls {
			status := "ok"
			if strings.HasPrefix(tc.Result, "Error:") {
				status = "error"
			}
			fmt.Printf("%d. %s (%s)\n", i+1, tc.Tool, status)
		}
	}
	fmt.Println("---")
}

func runInteractionsCommand(_ *cobra.Command, args []string) {
	if tenantFlag == "" {
		log.Fatalf("--tenant is required")
	}

	listURL := fmt.Sprintf("%s/v1/agent/interactions/%s?tenantId=%s&limit=%d",
		getAgentBaseURL(), args[0], tenantFlag, limitFlag)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(listURL)
	if err != nil {
		log.Fatalf("connection failed: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("failed to close response body: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("agent error (HTTP %d): %s", resp.StatusCode, string(raw))
	}

	var out struct {
		Interactions []interactionRecord `json:"interactions"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Fatalf("failed to decode response: %v", err)
	}

	if len(out.Interactions) == 0 {
		fmt.Println("No agent interactions recorded for this ticket.")
		return
	}
	for _, rec := range out.Interactions {
		applied := "suggested"
		if rec.AutoApplied {
			applied = "applied"
		}
		fmt.Printf("%s  %-14s %-12s conf=%.2f tools=%d %s (%s)\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Kind, rec.Action, rec.Confidence, rec.ToolCallCount, applied, rec.TriggeredBy)
		if rec.Summary != "" {
			fmt.Printf("    %s\n", rec.Summary)
		}
	}
}

func runHealthCommand(_ *cobra.Command, _ []string) {
	healthURL := fmt.Sprintf("%s/v1/agent/health", getAgentBaseURL())

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(healthURL)
	if err != nil {
		log.Fatalf("agent service unavailable at %s: %v", healthURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("failed to close response body: %v", closeErr)
		}
	}()

	var out struct {
		Status string `json:"status"`
		Model  struct {
			Connected bool   `json:"connected"`
			URL       string `json:"url"`
			Error     string `json:"error,omitempty"`
		} `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("failed to decode health response: %v", err)
	}

	fmt.Printf("Status: %s\n", out.Status)
	if out.Model.URL != "" {
		fmt.Printf("Model endpoint: %s (connected: %v)\n", out.Model.URL, out.Model.Connected)
	}
	if out.Model.Error != "" {
		fmt.Printf("Model error: %s\n", out.Model.Error)
	}
}

// startSpinner shows a progress animation on interactive terminals and
// returns a function that stops it. On pipes it is a no-op so output
// stays machine-readable.
func startSpinner(msg string) func() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		chars := []string{"▖", "▘", "▝", "▗"}
		i := 0
		fmt.Print("\033[?25l")
		defer fmt.Print("\033[?25h")
		for {
			select {
			case <-done:
				fmt.Print("\r                                        \r")
				return
			default:
				fmt.Printf("\r%s  %s... \033[K", chars[i%len(chars)], msg)
				i++
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
