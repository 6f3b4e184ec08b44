package tools

import (
	"context"
	"fmt"

	"github.com/ahmadsadek12/convoyd/internal/session"
	"github.com/ahmadsadek12/convoyd/internal/support"
)

type requestHumanAssistanceTool struct {
	support  *support.Store
	sessions *session.Store
}

// NewRequestHumanAssistanceTool builds the request_human_assistance tool,
// implementing the handover protocol: lock the session, open a
// high-priority pickup-queue ticket, and log a system message. It declares
// no RequiredValidator, matching guard.Sequencer's documented exception for
// tools with no precondition.
func NewRequestHumanAssistanceTool(supportStore *support.Store, sessionStore *session.Store) Tool {
	return &requestHumanAssistanceTool{support: supportStore, sessions: sessionStore}
}

func (t *requestHumanAssistanceTool) Name() string { return "request_human_assistance" }

func (t *requestHumanAssistanceTool) Description() string {
	return "Hand this conversation off to a human employee. Use when the customer explicitly asks for a person, or the request is outside what you can resolve."
}

func (t *requestHumanAssistanceTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"reason": map[string]any{"type": "string"}},
		"required":   []string{"reason"},
	}
}

func (t *requestHumanAssistanceTool) Permission() Permission { return Mutating }

func (t *requestHumanAssistanceTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	reason, _ := args["reason"].(string)
	if reason == "" {
		reason = "customer requested a human"
	}

	if err := t.sessions.HandToHuman(ctx, tenant.SessionID, ""); err != nil {
		return nil, fmt.Errorf("hand session to human: %w", err)
	}

	ticket, err := t.support.Open(ctx, support.OpenTicketParams{
		BusinessID: tenant.BusinessID,
		CustomerID: tenant.CustomerPhone,
		SessionID:  tenant.SessionID,
		Subject:    reason,
		Priority:   support.PriorityHigh,
	})
	if err != nil {
		return nil, fmt.Errorf("open support ticket: %w", err)
	}
	if err := t.support.AppendMessage(ctx, ticket.ID, session.SenderSystem, reason); err != nil {
		return nil, fmt.Errorf("append ticket message: %w", err)
	}
	if err := t.sessions.AppendMessage(ctx, tenant.SessionID, session.SenderSystem, "handed off to a human team member"); err != nil {
		return nil, fmt.Errorf("append session message: %w", err)
	}

	return Ok("A team member will take it from here and be with you shortly.", map[string]any{
		"ticket_id": ticket.ID,
	}), nil
}
