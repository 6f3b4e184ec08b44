package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/cart"
	"github.com/ahmadsadek12/convoyd/internal/orders"
)

// cartOrderResult shapes a cart snapshot the way every cart tool returns
// it, so the LLM sees a consistent payload after each mutation.
func cartOrderResult(order *orders.Order) map[string]any {
	return map[string]any{
		"order_id":      order.ID,
		"status":        string(order.Status),
		"subtotal":      order.Subtotal,
		"delivery_type": order.DeliveryType.String,
		"total":         order.Total,
	}
}

type addCartLineTool struct {
	cart *cart.Manager
}

// NewAddCartLineTool builds the add_line tool.
func NewAddCartLineTool(m *cart.Manager) Tool { return &addCartLineTool{cart: m} }

func (t *addCartLineTool) Name() string { return "add_line" }

func (t *addCartLineTool) Description() string {
	return "Add a catalog item to the customer's cart, or increase its quantity if already present with the same notes."
}

func (t *addCartLineTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"item_id":  map[string]any{"type": "string"},
			"quantity": map[string]any{"type": "integer", "description": "Defaults to 1 if omitted."},
			"notes":    map[string]any{"type": "string", "description": "Optional per-line note, e.g. 'no onions'."},
		},
		"required": []string{"item_id"},
	}
}

func (t *addCartLineTool) Permission() Permission { return Mutating }

func (t *addCartLineTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	itemID, _ := args["item_id"].(string)
	if itemID == "" {
		return Fail("INVALID_ARGUMENTS", "item_id is required"), nil
	}
	qty := intArg(args["quantity"], 1)
	notes, _ := args["notes"].(string)

	order, err := t.cart.AddLine(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone, itemID, qty, notes)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotAvailable) {
			return Fail("ITEM_UNAVAILABLE", "that item is not currently available"), nil
		}
		return nil, fmt.Errorf("add cart line: %w", err)
	}
	return Ok("added to cart", cartOrderResult(order)), nil
}

type updateCartLineTool struct {
	cart *cart.Manager
}

// NewUpdateCartLineTool builds the update_line tool.
func NewUpdateCartLineTool(m *cart.Manager) Tool { return &updateCartLineTool{cart: m} }

func (t *updateCartLineTool) Name() string { return "update_line" }

func (t *updateCartLineTool) Description() string {
	return "Change the quantity of an existing cart line. Setting quantity to 0 removes the line."
}

func (t *updateCartLineTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"line_id":  map[string]any{"type": "string"},
			"quantity": map[string]any{"type": "integer"},
		},
		"required": []string{"line_id", "quantity"},
	}
}

func (t *updateCartLineTool) Permission() Permission { return Mutating }

func (t *updateCartLineTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	lineID, _ := args["line_id"].(string)
	if lineID == "" {
		return Fail("INVALID_ARGUMENTS", "line_id is required"), nil
	}
	qty := intArg(args["quantity"], -1)
	if qty < 0 {
		return Fail("INVALID_ARGUMENTS", "quantity is required"), nil
	}

	order, err := t.cart.UpdateLine(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone, lineID, qty)
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) || errors.Is(err, cart.ErrEmptyCart) {
			return Fail("LINE_NOT_FOUND", "that cart line no longer exists"), nil
		}
		return nil, fmt.Errorf("update cart line: %w", err)
	}
	return Ok("cart updated", cartOrderResult(order)), nil
}

type removeCartLineTool struct {
	cart *cart.Manager
}

// NewRemoveCartLineTool builds the remove_line tool.
func NewRemoveCartLineTool(m *cart.Manager) Tool { return &removeCartLineTool{cart: m} }

func (t *removeCartLineTool) Name() string { return "remove_line" }

func (t *removeCartLineTool) Description() string {
	return "Remove a line from the customer's cart entirely."
}

func (t *removeCartLineTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"line_id": map[string]any{"type": "string"}},
		"required":   []string{"line_id"},
	}
}

func (t *removeCartLineTool) Permission() Permission { return Mutating }

func (t *removeCartLineTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	lineID, _ := args["line_id"].(string)
	if lineID == "" {
		return Fail("INVALID_ARGUMENTS", "line_id is required"), nil
	}

	order, err := t.cart.RemoveLine(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone, lineID)
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) || errors.Is(err, cart.ErrEmptyCart) {
			return Fail("LINE_NOT_FOUND", "that cart line no longer exists"), nil
		}
		return nil, fmt.Errorf("remove cart line: %w", err)
	}
	return Ok("removed from cart", cartOrderResult(order)), nil
}

type setDeliveryTypeTool struct {
	cart *cart.Manager
}

// NewSetDeliveryTypeTool builds the set_delivery_type tool.
func NewSetDeliveryTypeTool(m *cart.Manager) Tool { return &setDeliveryTypeTool{cart: m} }

func (t *setDeliveryTypeTool) Name() string { return "set_delivery_type" }

func (t *setDeliveryTypeTool) Description() string {
	return "Set how the order will reach the customer: takeaway, delivery, or on_site. For delivery, include the drop-off address."
}

func (t *setDeliveryTypeTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delivery_type": map[string]any{
				"type": "string",
				"enum": []string{"takeaway", "delivery", "on_site"},
			},
			"address": map[string]any{
				"type":        "string",
				"description": "Delivery address; required when delivery_type is delivery.",
			},
		},
		"required": []string{"delivery_type"},
	}
}

func (t *setDeliveryTypeTool) Permission() Permission { return Mutating }

func (t *setDeliveryTypeTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	raw, _ := args["delivery_type"].(string)
	dt := orders.DeliveryType(raw)
	if dt != orders.DeliveryTakeaway && dt != orders.DeliveryDelivery && dt != orders.DeliveryOnSite {
		return Fail("INVALID_ARGUMENTS", "delivery_type must be takeaway, delivery, or on_site"), nil
	}
	address, _ := args["address"].(string)

	order, err := t.cart.SetDeliveryType(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone, dt, address)
	if err != nil {
		if errors.Is(err, cart.ErrEmptyCart) {
			return Fail("EMPTY_CART", "add an item before choosing delivery type"), nil
		}
		return nil, fmt.Errorf("set delivery type: %w", err)
	}
	return Ok("delivery type set", cartOrderResult(order)), nil
}

type setCartNotesTool struct {
	cart *cart.Manager
}

// NewSetCartNotesTool builds the set_cart_notes tool.
func NewSetCartNotesTool(m *cart.Manager) Tool { return &setCartNotesTool{cart: m} }

func (t *setCartNotesTool) Name() string { return "set_cart_notes" }

func (t *setCartNotesTool) Description() string {
	return "Attach an order-level note to the cart (e.g. delivery instructions)."
}

func (t *setCartNotesTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"notes": map[string]any{"type": "string"}},
		"required":   []string{"notes"},
	}
}

func (t *setCartNotesTool) Permission() Permission { return Mutating }

func (t *setCartNotesTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	notes, _ := args["notes"].(string)

	order, err := t.cart.SetNotes(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone, notes)
	if err != nil {
		if errors.Is(err, cart.ErrEmptyCart) {
			return Fail("EMPTY_CART", "add an item before setting notes"), nil
		}
		return nil, fmt.Errorf("set cart notes: %w", err)
	}
	return Ok("notes saved", cartOrderResult(order)), nil
}

type setScheduledTimeTool struct {
	cart *cart.Manager
}

// NewSetScheduledTimeTool builds the set_scheduled_time tool. The model
// resolves the customer's wording through parse_datetime first and passes
// the returned RFC3339 value here; this tool only applies it.
func NewSetScheduledTimeTool(m *cart.Manager) Tool { return &setScheduledTimeTool{cart: m} }

func (t *setScheduledTimeTool) Name() string { return "set_scheduled_time" }

func (t *setScheduledTimeTool) Description() string {
	return "Mark this cart as a scheduled request for a future time instead of an immediate order. scheduled_for must be an absolute RFC3339 timestamp."
}

func (t *setScheduledTimeTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scheduled_for": map[string]any{
				"type":        "string",
				"description": "Absolute RFC3339 timestamp, e.g. 2026-08-01T19:00:00Z.",
			},
		},
		"required": []string{"scheduled_for"},
	}
}

func (t *setScheduledTimeTool) Permission() Permission { return Mutating }

func (t *setScheduledTimeTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	raw, _ := args["scheduled_for"].(string)
	when, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Fail("INVALID_ARGUMENTS", "scheduled_for must be an RFC3339 timestamp"), nil
	}
	if when.Before(time.Now()) {
		return Fail("SLOT_IN_PAST", "that time has already passed"), nil
	}

	order, err := t.cart.SetScheduled(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone, when)
	if err != nil {
		if errors.Is(err, cart.ErrEmptyCart) {
			return Fail("EMPTY_CART", "add an item before scheduling"), nil
		}
		return nil, fmt.Errorf("set scheduled time: %w", err)
	}
	return Ok("scheduled", cartOrderResult(order)), nil
}

func intArg(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
