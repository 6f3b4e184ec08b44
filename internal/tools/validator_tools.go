package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/reservations"
	"github.com/ahmadsadek12/convoyd/internal/validate"
)

// reportPayload turns a validate.Report into the tool-result payload shape,
// consistent across all three validators.
func reportPayload(report *validate.Report) map[string]any {
	return map[string]any{
		"valid":    report.Valid,
		"errors":   report.Errors,
		"warnings": report.Warnings,
	}
}

func reportMessage(report *validate.Report) string {
	if report.Valid {
		return "valid"
	}
	return "not valid: " + string(report.Errors[0].Code)
}

type validateCartTool struct {
	checker *validate.Checker
	orders  *orders.Store
}

// NewValidateCartTool builds the validate_cart_for_confirmation tool, the
// mandatory predecessor to confirm_order.
func NewValidateCartTool(checker *validate.Checker, orderStore *orders.Store) Tool {
	return &validateCartTool{checker: checker, orders: orderStore}
}

func (t *validateCartTool) Name() string { return "validate_cart_for_confirmation" }

func (t *validateCartTool) Description() string {
	return "Check whether the current cart is ready to be confirmed as a real order. Always call this immediately before confirm_order."
}

func (t *validateCartTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *validateCartTool) Permission() Permission { return ReadOnly }

func (t *validateCartTool) Execute(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}

	cartOrder, items, err := t.orders.GetCart(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cartOrder == nil {
		return Fail("EMPTY_CART", "there is no cart to validate"), nil
	}

	report, err := t.checker.CartForConfirmation(ctx, tenant.BusinessID, tenant.BranchID, cartOrder, items, time.Now())
	if err != nil {
		return nil, fmt.Errorf("validate cart: %w", err)
	}
	return Ok(reportMessage(report), reportPayload(report)), nil
}

type validateReservationRequestTool struct {
	checker      *validate.Checker
	reservations *reservations.Store
}

// NewValidateReservationRequestTool builds the validate_reservation_request
// tool, the mandatory predecessor to create_table_reservation.
func NewValidateReservationRequestTool(checker *validate.Checker, reservationStore *reservations.Store) Tool {
	return &validateReservationRequestTool{checker: checker, reservations: reservationStore}
}

func (t *validateReservationRequestTool) Name() string { return "validate_reservation_request" }

func (t *validateReservationRequestTool) Description() string {
	return "Check whether a requested reservation date/time and party size can be booked. Always call this immediately before create_table_reservation."
}

func (t *validateReservationRequestTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date":  map[string]any{"type": "string", "description": "Reservation date, YYYY-MM-DD."},
			"time":  map[string]any{"type": "string", "description": "Reservation time of day, e.g. 19:00."},
			"guests": map[string]any{"type": "integer"},
		},
		"required": []string{"date", "time", "guests"},
	}
}

func (t *validateReservationRequestTool) Permission() Permission { return ReadOnly }

func (t *validateReservationRequestTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}

	when, timeOfDay, err := parseReservationSlot(args)
	if err != nil {
		return Fail("INVALID_ARGUMENTS", err.Error()), nil
	}
	guests := intArg(args["guests"], 0)
	if guests <= 0 {
		return Fail("INVALID_ARGUMENTS", "guests must be a positive number"), nil
	}

	availableTables := func() (int, error) {
		tables, err := t.reservations.AvailableTables(ctx, tenant.OwnerUserID, when, timeOfDay)
		if err != nil {
			return 0, err
		}
		max := 0
		for _, table := range tables {
			if table.MinSeats <= guests && table.MaxSeats >= guests && table.MaxSeats > max {
				max = table.MaxSeats
			}
		}
		return max, nil
	}

	report, err := t.checker.ReservationRequest(ctx, tenant.OwnerUserID, when, guests, availableTables)
	if err != nil {
		return nil, fmt.Errorf("validate reservation request: %w", err)
	}
	return Ok(reportMessage(report), reportPayload(report)), nil
}

type validateCancellationTool struct {
	checker      *validate.Checker
	orders       *orders.Store
	reservations *reservations.Store
}

// NewValidateCancellationTool builds the validate_cancellation_eligibility
// tool, the mandatory predecessor to cancel_order and cancel_reservation.
func NewValidateCancellationTool(checker *validate.Checker, orderStore *orders.Store, reservationStore *reservations.Store) Tool {
	return &validateCancellationTool{checker: checker, orders: orderStore, reservations: reservationStore}
}

func (t *validateCancellationTool) Name() string { return "validate_cancellation_eligibility" }

func (t *validateCancellationTool) Description() string {
	return "Check whether an order or reservation can still be cancelled. Always call this immediately before cancel_order or cancel_reservation."
}

func (t *validateCancellationTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"order_id":       map[string]any{"type": "string"},
			"reservation_id": map[string]any{"type": "string"},
		},
	}
}

func (t *validateCancellationTool) Permission() Permission { return ReadOnly }

func (t *validateCancellationTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	orderID, _ := args["order_id"].(string)
	reservationID, _ := args["reservation_id"].(string)

	switch {
	case orderID != "":
		order, deadlinePassed, err := t.orders.CancellationDeadlinePassed(ctx, tenant.BusinessID, orderID, time.Now())
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return Fail("NOT_FOUND", "order not found"), nil
			}
			return nil, fmt.Errorf("load order: %w", err)
		}
		report := t.checker.CancellationEligibility(order, deadlinePassed)
		return Ok(reportMessage(report), reportPayload(report)), nil

	case reservationID != "":
		reservation, err := t.reservations.Get(ctx, tenant.BusinessID, reservationID)
		if err != nil {
			if errors.Is(err, reservations.ErrNotFound) {
				return Fail("NOT_FOUND", "reservation not found"), nil
			}
			return nil, fmt.Errorf("load reservation: %w", err)
		}
		report := reservationCancellationReport(reservation)
		return Ok(reportMessage(report), reportPayload(report)), nil

	default:
		return Fail("INVALID_ARGUMENTS", "order_id or reservation_id is required"), nil
	}
}

// reservationCancellationReport mirrors
// validate.Checker.CancellationEligibility for a reservation row: not
// already terminal, and its slot has not passed.
func reservationCancellationReport(r *reservations.Reservation) *validate.Report {
	report := &validate.Report{Valid: true}
	if r.Status != reservations.StatusConfirmed {
		report.Valid = false
		report.Errors = append(report.Errors, validate.Issue{Code: validate.CodeAlreadyTerminal, Message: "the reservation is no longer active"})
		return report
	}
	when, err := time.Parse("2006-01-02 15:04", r.Date.Format("2006-01-02")+" "+r.Time)
	if err == nil && when.Before(time.Now()) {
		report.Valid = false
		report.Errors = append(report.Errors, validate.Issue{Code: validate.CodeCancelDeadlinePassed, Message: "the reservation time has already passed"})
	}
	return report
}

func parseReservationSlot(args map[string]any) (time.Time, string, error) {
	dateStr, _ := args["date"].(string)
	timeStr, _ := args["time"].(string)
	if dateStr == "" || timeStr == "" {
		return time.Time{}, "", fmt.Errorf("date and time are required")
	}
	when, err := time.Parse("2006-01-02 15:04", dateStr+" "+timeStr)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("date/time must be YYYY-MM-DD and HH:MM")
	}
	return when, timeStr, nil
}
