// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatch

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ClawdeskHQ/clawdesk/services/agent"
	"github.com/ClawdeskHQ/clawdesk/services/interactions"
	"github.com/ClawdeskHQ/clawdesk/services/llm"
	"github.com/ClawdeskHQ/clawdesk/services/ticketing"
)

// ConnectivityChecker probes the model endpoint. Satisfied by *llm.Client.
type ConnectivityChecker interface {
	CheckConnectivity(ctx context.Context) llm.ConnectivityStatus
}

// AuditReader lists interaction records. Satisfied by *interactions.Store.
type AuditReader interface {
	ListByTicket(ctx context.Context, tenantID, ticketID string, limit int) ([]interactions.Record, error)
}

// Handlers serves the agent service's HTTP surface. Requests run the
// agent synchronously; the platform's job queue calls these endpoints and
// owns retry policy.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	tasks      AgentTasks
	settings   SettingsSource
	health     ConnectivityChecker
	audit      AuditReader
	dispatcher *Dispatcher
}

// NewHandlers creates the HTTP handler set. Health and audit may be nil;
// the corresponding endpoints then degrade (health reports unknown model
// status, interactions returns empty). A nil dispatcher disables the
// event endpoints.
func NewHandlers(tasks AgentTasks, settings SettingsSource, health ConnectivityChecker, audit AuditReader, dispatcher *Dispatcher) *Handlers {
	if tasks == nil || settings == nil {
		panic("NewHandlers: tasks and settings must not be nil")
	}
	return &Handlers{tasks: tasks, settings: settings, health: health, audit: audit, dispatcher: dispatcher}
}

// taskRequest is the common body for the role-task endpoints.
type taskRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
	TicketID string `json:"ticketId" binding:"required"`
	Model    string `json:"model"`
}

// widgetRequest adds the customer message for the widget endpoint.
type widgetRequest struct {
	TenantID            string  `json:"tenantId" binding:"required"`
	TicketID            string  `json:"ticketId" binding:"required"`
	Message             string  `json:"message" binding:"required"`
	Model               string  `json:"model"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

// HandleTriage runs the triage task.
//
// POST /v1/agent/triage
func (h *Handlers) HandleTriage(c *gin.Context) {
	h.runTask(c, h.tasks.TriageTicket)
}

// HandleDraft runs the draft-reply task. The reply is never sent; the
// result's draftReply field carries the text.
//
// POST /v1/agent/draft
func (h *Handlers) HandleDraft(c *gin.Context) {
	h.runTask(c, h.tasks.GenerateDraftReply)
}

// HandleResolve runs the end-to-end resolve task.
//
// POST /v1/agent/resolve
func (h *Handlers) HandleResolve(c *gin.Context) {
	h.runTask(c, h.tasks.AttemptResolve)
}

// HandleSummarize runs the read-only summary task.
//
// POST /v1/agent/summarize
func (h *Handlers) HandleSummarize(c *gin.Context) {
	h.runTask(c, h.tasks.SummarizeTicket)
}

func (h *Handlers) runTask(c *gin.Context, task func(context.Context, agent.ExecutionContext, string) agent.AgentResult) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := task(c.Request.Context(), h.execContext(req.TenantID, req.Model), req.TicketID)
	c.JSON(http.StatusOK, result)
}

// HandleWidget answers a chat-widget message.
//
// POST /v1/agent/widget
func (h *Handlers) HandleWidget(c *gin.Context) {
	var req widgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threshold := req.ConfidenceThreshold
	if threshold <= 0 {
		threshold = h.settings.Get(req.TenantID).ConfidenceThreshold
	}

	result := h.tasks.HandleWidgetMessage(c.Request.Context(),
		h.execContext(req.TenantID, req.Model), req.TicketID, req.Message, threshold)
	c.JSON(http.StatusOK, result)
}

// HandleInteractions returns a ticket's agent audit trail, newest first.
//
// GET /v1/agent/interactions/:ticketId?tenantId=...&limit=...
func (h *Handlers) HandleInteractions(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId query parameter is required"})
		return
	}
	limit := 50
	if l, ok := c.GetQuery("limit"); ok {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	if h.audit == nil {
		c.JSON(http.StatusOK, gin.H{"interactions": []interactions.Record{}})
		return
	}
	records, err := h.audit.ListByTicket(c.Request.Context(), tenantID, c.Param("ticketId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []interactions.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"interactions": records})
}

// ticketCreatedEvent is the ticket.created payload the platform posts.
type ticketCreatedEvent struct {
	TenantID string `json:"tenantId" binding:"required"`
	TicketID string `json:"ticketId" binding:"required"`
}

// messageCreatedEvent is the message.created payload the platform posts.
type messageCreatedEvent struct {
	TenantID string            `json:"tenantId" binding:"required"`
	Message  ticketing.Message `json:"message" binding:"required"`
}

// HandleTicketCreatedEvent feeds a ticket.created event through the
// guardrail-composing dispatcher (auto-triage when enabled).
//
// POST /v1/events/ticket.created
func (h *Handlers) HandleTicketCreatedEvent(c *gin.Context) {
	var ev ticketCreatedEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.dispatcher.HandleTicketCreated(c.Request.Context(), ev.TenantID, ev.TicketID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "dispatched"})
}

// HandleMessageCreatedEvent feeds a message.created event through the
// dispatcher (widget, autonomous, or copilot routing).
//
// POST /v1/events/message.created
func (h *Handlers) HandleMessageCreatedEvent(c *gin.Context) {
	var ev messageCreatedEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.dispatcher.HandleInboundMessage(c.Request.Context(), ev.TenantID, ev.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "dispatched"})
}

// HandleHealth reports service liveness and model endpoint connectivity.
//
// GET /v1/agent/health
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.health != nil {
		model := h.health.CheckConnectivity(c.Request.Context())
		resp["model"] = model
		if !model.Connected {
			resp["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) execContext(tenantID, model string) agent.ExecutionContext {
	if model == "" {
		model = h.settings.Get(tenantID).Model
	}
	return agent.ExecutionContext{TenantID: tenantID, Model: model}
}
