// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Package-level flag values shared by the subcommands.
var (
	serverFlag    string
	tenantFlag    string
	modelFlag     string
	thresholdFlag float64
	limitFlag     int
)

// getAgentBaseURL resolves the agentd address: --server flag first, then
// the CLAWDESK_AGENT_URL environment variable, then the local default.
func getAgentBaseURL() string {
	if serverFlag != "" {
		return serverFlag
	}
	if url := os.Getenv("CLAWDESK_AGENT_URL"); url != "" {
		return url
	}
	return "http://localhost:8087"
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "clawdesk",
		Short: "Clawdesk support agent CLI",
		Long: `Command-line client for the Clawdesk agent service (agentd).

Runs agent tasks against tickets on the platform: triage, draft replies,
autonomous resolution, summaries, and widget conversations. The agent does
the work server-side; this client only submits requests and prints results.`,
	}
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "agentd base URL (default $CLAWDESK_AGENT_URL or http://localhost:8087)")
	rootCmd.PersistentFlags().StringVarP(&tenantFlag, "tenant", "t", "", "tenant ID (required)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "model override for this request")

	triageCmd := &cobra.Command{
		Use:   "triage <ticket-id>",
		Short: "Categorize and prioritize a ticket",
		Args:  cobra.ExactArgs(1),
		Run:   runTriageCommand,
	}

	draftCmd := &cobra.Command{
		Use:   "draft <ticket-id>",
		Short: "Draft a reply for agent review (never sent automatically)",
		Args:  cobra.ExactArgs(1),
		Run:   runDraftCommand,
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <ticket-id>",
		Short: "Attempt end-to-end resolution of a ticket",
		Args:  cobra.ExactArgs(1),
		Run:   runResolveCommand,
	}

	summarizeCmd := &cobra.Command{
		Use:   "summarize <ticket-id>",
		Short: "Summarize a ticket conversation (read-only)",
		Args:  cobra.ExactArgs(1),
		Run:   runSummarizeCommand,
	}

	widgetCmd := &cobra.Command{
		Use:   "widget <ticket-id> <message...>",
		Short: "Answer a chat-widget message on a ticket",
		Args:  cobra.MinimumNArgs(2),
		Run:   runWidgetCommand,
	}
	widgetCmd.Flags().Float64Var(&thresholdFlag, "threshold", 0, "confidence threshold override (0 = tenant setting)")

	interactionsCmd := &cobra.Command{
		Use:   "interactions <ticket-id>",
		Short: "Show a ticket's agent audit trail",
		Args:  cobra.ExactArgs(1),
		Run:   runInteractionsCommand,
	}
	interactionsCmd.Flags().IntVar(&limitFlag, "limit", 50, "maximum records to return")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check agentd liveness and model connectivity",
		Run:   runHealthCommand,
	}

	rootCmd.AddCommand(triageCmd, draftCmd, resolveCmd, summarizeCmd, widgetCmd, interactionsCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
