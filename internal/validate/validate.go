// Package validate implements the read-only predicate layer: the validator
// tools the mandatory-ordering rule requires before a mutating tool runs.
// Every check here is pure read plus business-rule evaluation, never a
// write, so a validator can run freely even when its paired mutating tool
// would fail.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/orders"
)

// Code is a machine-readable validation outcome.
type Code string

const (
	CodeEmptyCart            Code = "EMPTY_CART"
	CodeBusinessClosed       Code = "BUSINESS_CLOSED"
	CodePastLastOrderTime    Code = "PAST_LAST_ORDER_TIME"
	CodeMissingDeliveryType  Code = "MISSING_DELIVERY_TYPE"
	CodeMissingAddress       Code = "MISSING_ADDRESS"
	CodeItemUnavailable      Code = "ITEM_UNAVAILABLE"
	CodeNoTableFits          Code = "NO_TABLE_FITS"
	CodeSlotInPast           Code = "SLOT_IN_PAST"
	CodeCancelDeadlinePassed Code = "CANCEL_DEADLINE_PASSED"
	CodeAlreadyTerminal      Code = "ALREADY_TERMINAL"
)

// Issue is one validation failure or warning.
type Issue struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Report is the structured result every validator returns.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

func (r *Report) fail(code Code, msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, Issue{Code: code, Message: msg})
}

func (r *Report) warn(code Code, msg string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Message: msg})
}

// Checker runs the validators against the catalog store; orders are passed
// in by the caller.
type Checker struct {
	catalog *catalog.Store
}

// NewChecker builds a Checker.
func NewChecker(catalogStore *catalog.Store) *Checker {
	return &Checker{catalog: catalogStore}
}

// CartForConfirmation checks that a cart is ready to become a real order:
// non-empty, business open and not past last-order-time, a delivery type
// with an address when delivering, and every item still available.
func (c *Checker) CartForConfirmation(ctx context.Context, businessID, branchID string, cartOrder *orders.Order, items []orders.OrderItem, now time.Time) (*Report, error) {
	report := &Report{Valid: true}
	if len(items) == 0 {
		report.fail(CodeEmptyCart, "the cart has no items")
		return report, nil
	}

	hours, err := c.catalog.EffectiveOpeningHours(ctx, businessID, branchID, int(now.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("load opening hours: %w", err)
	}
	if !hours.IsOpenAt(now) {
		report.fail(CodeBusinessClosed, "the business is closed at this time")
	} else if hours.PastLastOrderTime(now) {
		report.fail(CodePastLastOrderTime, "it is past the last order time for today")
	}

	if !cartOrder.DeliveryType.Valid {
		report.fail(CodeMissingDeliveryType, "no delivery type has been chosen")
	} else if cartOrder.DeliveryType.String == string(orders.DeliveryDelivery) && !cartOrder.LocationAddress.Valid {
		report.fail(CodeMissingAddress, "delivery requires a location address")
	}

	for _, it := range items {
		item, err := c.catalog.GetItem(ctx, businessID, it.ItemID)
		if err != nil {
			return nil, fmt.Errorf("load item %s: %w", it.ItemID, err)
		}
		if item.Availability != catalog.AvailabilityAvailable {
			report.fail(CodeItemUnavailable, fmt.Sprintf("%s is no longer available", item.Name))
		}
	}

	return report, nil
}

// ReservationRequest checks a requested table/appointment slot is in the
// future and that a table exists which can seat the party.
func (c *Checker) ReservationRequest(ctx context.Context, ownerUserID string, when time.Time, partySize int, availableTables func() (int, error)) (*Report, error) {
	report := &Report{Valid: true}
	if when.Before(time.Now()) {
		report.fail(CodeSlotInPast, "the requested slot is in the past")
		return report, nil
	}
	if availableTables != nil {
		maxSeats, err := availableTables()
		if err != nil {
			return nil, err
		}
		if maxSeats < partySize {
			report.fail(CodeNoTableFits, "no table can seat a party of this size at that time")
		}
	}
	return report, nil
}

// CancellationEligibility checks that an order is not already terminal and
// every line's cancelable-before-hours window has not yet passed.
func (c *Checker) CancellationEligibility(order *orders.Order, deadlinePassed bool) *Report {
	report := &Report{Valid: true}
	if order.Status.Terminal() {
		report.fail(CodeAlreadyTerminal, "the order is already in a terminal state")
		return report
	}
	if deadlinePassed {
		report.fail(CodeCancelDeadlinePassed, "the cancellation window for this order has passed")
	}
	return report
}
