// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Wire Types (OpenAI chat-completions schema)
// =============================================================================

const defaultRequestTimeout = 120 * time.Second

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_completion_tokens,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireCallFunction `json:"function"`
}

type wireCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// Client talks to an OpenAI-compatible chat-completion endpoint using raw
// net/http. The platform points this at its model gateway; any endpoint
// speaking the chat-completions schema with function calling works.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	limiter    *rate.Limiter
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the endpoint root, e.g. "http://localhost:11434/v1".
	// The client appends /chat/completions and /models.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the default model name. Tenant configuration may override
	// it per request via GenerationParams.ModelOverride.
	Model string

	// Timeout bounds each HTTP request. Zero uses 120s.
	Timeout time.Duration

	// RequestsPerMinute caps outbound model calls across all concurrent
	// runs. Zero disables the limiter.
	RequestsPerMinute int
}

// NewClient creates a Client from explicit configuration.
//
// Description:
//
//	Does not read the environment. The request limiter, when configured,
//	is shared by all runs using this client so a burst of queued agent
//	jobs cannot stampede the gateway.
//
// Outputs:
//   - *Client: Ready-to-use client. Never nil.
//   - error: Non-nil if BaseURL is missing.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: base URL is missing")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	slog.Info("Initializing model client",
		slog.String("base_url", cfg.BaseURL),
		slog.String("model", cfg.Model),
		slog.Int("rpm", cfg.RequestsPerMinute),
	)
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    limiter,
	}, nil
}

// NewClientFromEnv creates a Client from CLAWDESK_MODEL_URL,
// CLAWDESK_MODEL_API_KEY, and CLAWDESK_MODEL environment variables.
func NewClientFromEnv() (*Client, error) {
	baseURL := os.Getenv("CLAWDESK_MODEL_URL")
	if baseURL == "" {
		slog.Warn("CLAWDESK_MODEL_URL not set; agent features disabled")
		return nil, fmt.Errorf("llm: base URL is missing (CLAWDESK_MODEL_URL)")
	}
	model := os.Getenv("CLAWDESK_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("CLAWDESK_MODEL not set, defaulting to gpt-4o-mini")
	}
	return NewClient(ClientConfig{
		BaseURL: baseURL,
		APIKey:  os.Getenv("CLAWDESK_MODEL_API_KEY"),
		Model:   model,
	})
}

// Model returns the client's default model name.
func (c *Client) Model() string { return c.model }

// ChatWithTools submits the transcript plus the tool catalog and returns
// the assistant's turn.
//
// Description:
//
//	Sends one chat-completion request with tool_choice "auto". The caller
//	owns retry policy; this method performs exactly one attempt. Request
//	bodies include the full transcript, so each call is stateless with
//	respect to the endpoint.
//
// Inputs:
//   - ctx: Context for cancellation and timeout. Bounds the limiter wait
//     and the HTTP request.
//   - messages: The transcript so far.
//   - params: Generation parameters.
//   - tools: Tool definitions for function calling.
//
// Outputs:
//   - *ChatWithToolsResult: Content and/or tool calls.
//   - error: Non-nil on transport failure, non-2xx status, or an empty
//     choice list.
//
// Thread Safety: This method is safe for concurrent use.
func (c *Client) ChatWithTools(ctx context.Context, messages []ChatMessage,
	params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error) {

	model := c.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm: rate limiter wait: %w", err)
		}
	}

	slog.Debug("ChatWithTools",
		slog.String("model", model),
		slog.Int("messages", len(messages)),
		slog.Int("tools", len(tools)),
	)

	wireMsgs := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		wm := wireMessage{Role: msg.Role, Content: msg.Content}
		if msg.Role == "tool" && msg.ToolCallID != "" {
			wm.ToolCallID = msg.ToolCallID
		}
		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			for _, tc := range msg.ToolCalls {
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: wireCallFunction{
						Name:      tc.Name,
						Arguments: tc.ArgumentsString(),
					},
				})
			}
		}
		wireMsgs = append(wireMsgs, wm)
	}

	wireTools := make([]wireTool, 0, len(tools))
	for _, td := range tools {
		wireTools = append(wireTools, wireTool{Type: "function", Function: td.Function})
	}

	reqPayload := chatRequest{
		Model:    model,
		Messages: wireMsgs,
		Tools:    wireTools,
	}
	if len(wireTools) > 0 {
		reqPayload.ToolChoice = "auto"
	}
	if params.Temperature != nil {
		reqPayload.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		reqPayload.MaxTokens = params.MaxTokens
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("llm: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llm: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		recordModelCall(model, "error", time.Since(start))
		return nil, fmt.Errorf("llm: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		recordModelCall(model, "error", time.Since(start))
		return nil, fmt.Errorf("llm: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		recordModelCall(model, "error", time.Since(start))
		return nil, fmt.Errorf("llm: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		recordModelCall(model, "error", time.Since(start))
		return nil, fmt.Errorf("llm: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		recordModelCall(model, "error", time.Since(start))
		return nil, fmt.Errorf("llm: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}

	if len(apiResp.Choices) == 0 {
		recordModelCall(model, "error", time.Since(start))
		return nil, fmt.Errorf("llm: returned no choices")
	}

	recordModelCall(model, "success", time.Since(start))

	choice := apiResp.Choices[0]
	result := &ChatWithToolsResult{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallResponse{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	if len(result.ToolCalls) > 0 {
		result.StopReason = "tool_use"
	} else {
		result.StopReason = "end"
	}

	slog.Debug("ChatWithTools response",
		slog.String("finish_reason", choice.FinishReason),
		slog.Int("tool_calls", len(result.ToolCalls)),
		slog.Int("content_len", len(result.Content)),
	)

	return result, nil
}

// ConnectivityStatus reports whether the model endpoint is reachable.
type ConnectivityStatus struct {
	Connected bool   `json:"connected"`
	URL       string `json:"url"`
	Error     string `json:"error,omitempty"`
}

// CheckConnectivity probes the endpoint's /models route. Used by the health
// handler; never fails, failures are reported in the result.
func (c *Client) CheckConnectivity(ctx context.Context) ConnectivityStatus {
	status := ConnectivityStatus{URL: c.baseURL}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status.Error = SafeLogString(err.Error())
		return status
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}
	status.Connected = true
	return status
}
