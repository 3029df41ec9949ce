// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatch

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the agent service endpoints with the router.
//
// Description:
//
//	Registers all /v1/agent/* endpoints with the given Gin router group.
//	The group should already carry any required middleware.
//
// Endpoints:
//
//	POST /v1/agent/triage - Triage a ticket (classify, prioritize, route)
//	POST /v1/agent/draft - Draft a reply without sending
//	POST /v1/agent/resolve - Attempt end-to-end resolution
//	POST /v1/agent/summarize - Summarize a ticket with action items
//	POST /v1/agent/widget - Answer a chat-widget message
//	GET  /v1/agent/interactions/:ticketId - Agent audit trail for a ticket
//	GET  /v1/agent/health - Liveness and model connectivity
//
// Event Endpoints (registered only when the handlers carry a dispatcher):
//
//	POST /v1/events/ticket.created - Dispatch auto-triage for a new ticket
//	POST /v1/events/message.created - Dispatch reply/suggestion routing
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ag := rg.Group("/agent")
	{
		ag.POST("/triage", handlers.HandleTriage)
		ag.POST("/draft", handlers.HandleDraft)
		ag.POST("/resolve", handlers.HandleResolve)
		ag.POST("/summarize", handlers.HandleSummarize)
		ag.POST("/widget", handlers.HandleWidget)

		ag.GET("/interactions/:ticketId", handlers.HandleInteractions)
		ag.GET("/health", handlers.HandleHealth)
	}

	if handlers.dispatcher != nil {
		ev := rg.Group("/events")
		{
			ev.POST("/ticket.created", handlers.HandleTicketCreatedEvent)
			ev.POST("/message.created", handlers.HandleMessageCreatedEvent)
		}
	}
}
