package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmadsadek12/convoyd/internal/reservations"
)

type createTableReservationTool struct {
	reservations *reservations.Store
}

// NewCreateTableReservationTool builds the create_table_reservation tool.
// Eligible returns false unless the business type is F&B and the
// table_reservations addon is active, and RequiredValidatorName wires it to
// validate_reservation_request.
func NewCreateTableReservationTool(reservationStore *reservations.Store) Tool {
	return &createTableReservationTool{reservations: reservationStore}
}

func (t *createTableReservationTool) Name() string { return "create_table_reservation" }

func (t *createTableReservationTool) Description() string {
	return "Book a table for the given date, time, and party size, auto-selecting the best-fit table. Must be preceded by a successful validate_reservation_request call in this turn."
}

func (t *createTableReservationTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date":           map[string]any{"type": "string", "description": "YYYY-MM-DD"},
			"time":           map[string]any{"type": "string", "description": "HH:MM"},
			"guests":         map[string]any{"type": "integer"},
			"customer_name":  map[string]any{"type": "string"},
			"table_number":   map[string]any{"type": "integer", "description": "Optional: a specific table number the customer asked for."},
			"position_label": map[string]any{"type": "string", "description": "Optional: a preferred area, e.g. 'terrace' or 'window'."},
		},
		"required": []string{"date", "time", "guests", "customer_name"},
	}
}

func (t *createTableReservationTool) Permission() Permission { return Mutating }

func (t *createTableReservationTool) RequiredValidatorName() string {
	return "validate_reservation_request"
}

// Eligible implements EligibilityChecker: table reservation tooling is only
// offered to F&B businesses with the table_reservations addon active.
func (t *createTableReservationTool) Eligible(_ context.Context, tenantCtx EligibilityContext) (bool, error) {
	return tenantCtx.BusinessType == "fnb" && tenantCtx.ActiveAddons["table_reservations"], nil
}

func (t *createTableReservationTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	if tenant.BusinessType != "fnb" {
		return Fail("INELIGIBLE", "table reservations are not offered by this business"), nil
	}

	when, timeOfDay, err := parseReservationSlot(args)
	if err != nil {
		return Fail("INVALID_ARGUMENTS", err.Error()), nil
	}
	guests := intArg(args["guests"], 0)
	if guests <= 0 {
		return Fail("INVALID_ARGUMENTS", "guests must be a positive number"), nil
	}
	customerName, _ := args["customer_name"].(string)
	if customerName == "" {
		return Fail("INVALID_ARGUMENTS", "customer_name is required"), nil
	}
	var tableNumber *int
	if raw, ok := args["table_number"]; ok {
		n := intArg(raw, 0)
		tableNumber = &n
	}
	positionPref, _ := args["position_label"].(string)

	reservation, err := t.reservations.CreateTableReservation(
		ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone, customerName, when, timeOfDay, guests, tableNumber, positionPref)
	if err != nil {
		switch {
		case errors.Is(err, reservations.ErrSlotTaken):
			return Fail("SLOT_TAKEN", "that slot was just booked by someone else, please pick another time"), nil
		case errors.Is(err, reservations.ErrNoTableFits):
			return Fail("NO_TABLE_FITS", "no table can seat a party of this size at that time"), nil
		}
		return nil, fmt.Errorf("create table reservation: %w", err)
	}
	return Ok("reservation confirmed", map[string]any{
		"reservation_id": reservation.ID,
		"date":           reservation.Date.Format("2006-01-02"),
		"time":           reservation.Time,
		"status":         string(reservation.Status),
	}), nil
}

type cancelReservationTool struct {
	reservations *reservations.Store
}

// NewCancelReservationTool builds the cancel_reservation tool, gated on
// validate_cancellation_eligibility the same as cancel_order.
func NewCancelReservationTool(reservationStore *reservations.Store) Tool {
	return &cancelReservationTool{reservations: reservationStore}
}

func (t *cancelReservationTool) Name() string { return "cancel_reservation" }

func (t *cancelReservationTool) Description() string {
	return "Cancel an existing table reservation. Must be preceded by a successful validate_cancellation_eligibility call in this turn."
}

func (t *cancelReservationTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"reservation_id": map[string]any{"type": "string"}},
		"required":   []string{"reservation_id"},
	}
}

func (t *cancelReservationTool) Permission() Permission { return Mutating }

func (t *cancelReservationTool) RequiredValidatorName() string {
	return "validate_cancellation_eligibility"
}

func (t *cancelReservationTool) Eligible(_ context.Context, tenantCtx EligibilityContext) (bool, error) {
	return tenantCtx.BusinessType == "fnb" && tenantCtx.ActiveAddons["table_reservations"], nil
}

func (t *cancelReservationTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	reservationID, _ := args["reservation_id"].(string)
	if reservationID == "" {
		return Fail("INVALID_ARGUMENTS", "reservation_id is required"), nil
	}

	reservation, err := t.reservations.Cancel(ctx, tenant.BusinessID, reservationID)
	if err != nil {
		if errors.Is(err, reservations.ErrNotFound) {
			return Fail("NOT_FOUND", "reservation not found or already cancelled"), nil
		}
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}
	return Ok("reservation cancelled", map[string]any{
		"reservation_id": reservation.ID,
		"status":         string(reservation.Status),
	}), nil
}

type addPreOrderedItemTool struct {
	reservations *reservations.Store
}

// NewAddPreOrderedItemTool builds the add_preordered_item tool, letting a
// customer attach menu items to a confirmed reservation.
func NewAddPreOrderedItemTool(reservationStore *reservations.Store) Tool {
	return &addPreOrderedItemTool{reservations: reservationStore}
}

func (t *addPreOrderedItemTool) Name() string { return "add_preordered_item" }

func (t *addPreOrderedItemTool) Description() string {
	return "Attach a pre-ordered menu item to a confirmed reservation, so it's ready when the party arrives."
}

func (t *addPreOrderedItemTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reservation_id": map[string]any{"type": "string"},
			"item_id":        map[string]any{"type": "string"},
			"quantity":       map[string]any{"type": "integer"},
			"notes":          map[string]any{"type": "string"},
		},
		"required": []string{"reservation_id", "item_id"},
	}
}

func (t *addPreOrderedItemTool) Permission() Permission { return Mutating }

func (t *addPreOrderedItemTool) Eligible(_ context.Context, tenantCtx EligibilityContext) (bool, error) {
	return tenantCtx.BusinessType == "fnb" && tenantCtx.ActiveAddons["table_reservations"], nil
}

func (t *addPreOrderedItemTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	reservationID, _ := args["reservation_id"].(string)
	itemID, _ := args["item_id"].(string)
	if reservationID == "" || itemID == "" {
		return Fail("INVALID_ARGUMENTS", "reservation_id and item_id are required"), nil
	}
	qty := intArg(args["quantity"], 1)
	notes, _ := args["notes"].(string)

	if err := t.reservations.AddPreOrderedItem(ctx, tenant.BusinessID, reservationID, itemID, qty, notes); err != nil {
		switch {
		case errors.Is(err, reservations.ErrNotFound):
			return Fail("NOT_FOUND", "reservation not found"), nil
		case errors.Is(err, reservations.ErrNotConfirmed):
			return Fail("NOT_CONFIRMED", "pre-ordered items can only be added while the reservation is confirmed"), nil
		}
		return nil, fmt.Errorf("add pre-ordered item: %w", err)
	}
	return Ok("pre-ordered item added", map[string]any{"reservation_id": reservationID, "item_id": itemID}), nil
}

type removePreOrderedItemTool struct {
	reservations *reservations.Store
}

// NewRemovePreOrderedItemTool builds the remove_preordered_item tool, the
// counterpart to add_preordered_item.
func NewRemovePreOrderedItemTool(reservationStore *reservations.Store) Tool {
	return &removePreOrderedItemTool{reservations: reservationStore}
}

func (t *removePreOrderedItemTool) Name() string { return "remove_preordered_item" }

func (t *removePreOrderedItemTool) Description() string {
	return "Remove a previously added pre-ordered item from a confirmed reservation."
}

func (t *removePreOrderedItemTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reservation_id":      map[string]any{"type": "string"},
			"reservation_item_id": map[string]any{"type": "string"},
		},
		"required": []string{"reservation_id", "reservation_item_id"},
	}
}

func (t *removePreOrderedItemTool) Permission() Permission { return Mutating }

func (t *removePreOrderedItemTool) Eligible(_ context.Context, tenantCtx EligibilityContext) (bool, error) {
	return tenantCtx.BusinessType == "fnb" && tenantCtx.ActiveAddons["table_reservations"], nil
}

func (t *removePreOrderedItemTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	reservationID, _ := args["reservation_id"].(string)
	itemLineID, _ := args["reservation_item_id"].(string)
	if reservationID == "" || itemLineID == "" {
		return Fail("INVALID_ARGUMENTS", "reservation_id and reservation_item_id are required"), nil
	}

	if err := t.reservations.RemoveItem(ctx, tenant.BusinessID, reservationID, itemLineID); err != nil {
		switch {
		case errors.Is(err, reservations.ErrNotFound):
			return Fail("NOT_FOUND", "pre-ordered item not found"), nil
		case errors.Is(err, reservations.ErrNotConfirmed):
			return Fail("NOT_CONFIRMED", "pre-ordered items can only be removed while the reservation is confirmed"), nil
		}
		return nil, fmt.Errorf("remove pre-ordered item: %w", err)
	}
	return Ok("pre-ordered item removed", map[string]any{"reservation_id": reservationID}), nil
}
