// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{Model: "gpt-4o-mini"})
	require.Error(t, err)
}

func TestChatWithToolsPlainAnswer(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": `{"action":"replied"}`},
				"finish_reason": "stop",
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	result, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "hello"}}, GenerationParams{}, nil)
	require.NoError(t, err)
	require.Equal(t, `{"action":"replied"}`, result.Content)
	require.Equal(t, "end", result.StopReason)
	require.Empty(t, result.ToolCalls)

	require.Equal(t, "gpt-4o-mini", gotReq.Model)
	// No tools attached means no tool_choice either.
	require.Empty(t, gotReq.ToolChoice)
}

func TestChatWithToolsToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "auto", req.ToolChoice)
		require.Len(t, req.Tools, 1)

		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call-1",
						"type": "function",
						"function": map[string]any{
							"name":      "get_ticket",
							"arguments": `{"ticketId":"t1"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	tools := []ToolDef{{Type: "function", Function: ToolFunction{Name: "get_ticket"}}}
	result, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "task"}}, GenerationParams{}, tools)
	require.NoError(t, err)
	require.Equal(t, "tool_use", result.StopReason)
	require.Len(t, result.ToolCalls, 1)
	require.Equal(t, "get_ticket", result.ToolCalls[0].Name)

	args := result.ToolCalls[0].ArgumentsMap()
	require.Equal(t, "t1", args["ticketId"])
}

func TestChatWithToolsModelOverride(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": "ok"},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "x"}},
		GenerationParams{ModelOverride: "llama3.1"}, nil)
	require.NoError(t, err)
	require.Equal(t, "llama3.1", gotModel)
}

func TestChatWithToolsErrorStatusRedactsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key sk-abcdefghijklmnopqrstuvwxyz123456"}`))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "x"}}, GenerationParams{}, nil)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "sk-abcdefghijklmnopqrstuvwxyz123456")
	require.Contains(t, err.Error(), "[REDACTED:openai_key]")
}

func TestChatWithToolsNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "x"}}, GenerationParams{}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestCheckConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	status := client.CheckConnectivity(context.Background())
	require.True(t, status.Connected)
	require.Equal(t, srv.URL, status.URL)

	srv.Close()
	status = client.CheckConnectivity(context.Background())
	require.False(t, status.Connected)
	require.NotEmpty(t, status.Error)
}

func TestArgumentsMapDefensive(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{"empty", "", map[string]any{}},
		{"object", `{"a":1}`, map[string]any{"a": float64(1)}},
		{"double encoded", `"{\"a\":1}"`, map[string]any{"a": float64(1)}},
		{"garbage", `not json`, map[string]any{}},
		{"array", `[1,2]`, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := ToolCallResponse{Arguments: json.RawMessage(tt.raw)}
			require.Equal(t, tt.want, tc.ArgumentsMap())
		})
	}
}
