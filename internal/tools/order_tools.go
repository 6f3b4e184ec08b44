package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/orders"
)

type confirmOrderTool struct {
	orders *orders.Store
}

// NewConfirmOrderTool builds the confirm_order tool. Its
// RequiredValidatorName wires it to validate_cart_for_confirmation through
// guard.Sequencer, so the engine rejects a confirm attempt that didn't just
// pass validation.
func NewConfirmOrderTool(orderStore *orders.Store) Tool {
	return &confirmOrderTool{orders: orderStore}
}

func (t *confirmOrderTool) Name() string { return "confirm_order" }

func (t *confirmOrderTool) Description() string {
	return "Convert the current cart into a confirmed order. Must be preceded by a successful validate_cart_for_confirmation call in this turn."
}

func (t *confirmOrderTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *confirmOrderTool) Permission() Permission { return Mutating }

func (t *confirmOrderTool) RequiredValidatorName() string { return "validate_cart_for_confirmation" }

func (t *confirmOrderTool) Execute(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}

	cartOrder, _, err := t.orders.GetCart(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cartOrder == nil {
		return Fail("EMPTY_CART", "there is no cart to confirm"), nil
	}

	order, err := t.orders.ConfirmOrder(ctx, tenant.BusinessID, cartOrder.ID, tenant.CustomerPhone, time.Now())
	if err != nil {
		if errors.Is(err, orders.ErrInvalidTransition) {
			return Fail("INVALID_STATE", "this cart can no longer be confirmed"), nil
		}
		return nil, fmt.Errorf("confirm order: %w", err)
	}
	return Ok("order confirmed", map[string]any{
		"order_id": order.ID,
		"status":   string(order.Status),
		"total":    order.Total,
	}), nil
}

type cancelOrderTool struct {
	orders *orders.Store
}

// NewCancelOrderTool builds the cancel_order tool, gated on
// validate_cancellation_eligibility.
func NewCancelOrderTool(orderStore *orders.Store) Tool {
	return &cancelOrderTool{orders: orderStore}
}

func (t *cancelOrderTool) Name() string { return "cancel_order" }

func (t *cancelOrderTool) Description() string {
	return "Cancel an existing order. Must be preceded by a successful validate_cancellation_eligibility call in this turn."
}

func (t *cancelOrderTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"order_id": map[string]any{"type": "string"}},
		"required":   []string{"order_id"},
	}
}

func (t *cancelOrderTool) Permission() Permission { return Mutating }

func (t *cancelOrderTool) RequiredValidatorName() string { return "validate_cancellation_eligibility" }

func (t *cancelOrderTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	orderID, _ := args["order_id"].(string)
	if orderID == "" {
		return Fail("INVALID_ARGUMENTS", "order_id is required"), nil
	}

	order, err := t.orders.CancelOrder(ctx, tenant.BusinessID, orderID, tenant.CustomerPhone, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidTransition):
			return Fail("ALREADY_TERMINAL", "this order can no longer be cancelled"), nil
		case errors.Is(err, orders.ErrCancelDeadline):
			return Fail("CANCEL_DEADLINE_PASSED", "the cancellation window for this order has passed"), nil
		case errors.Is(err, orders.ErrNotFound):
			return Fail("NOT_FOUND", "order not found"), nil
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	return Ok("order cancelled", map[string]any{
		"order_id": order.ID,
		"status":   string(order.Status),
	}), nil
}
