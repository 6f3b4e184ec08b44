package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/timeparse"
)

type parseDateTimeTool struct {
	catalog *catalog.Store
	orders  *orders.Store
}

// NewParseDateTimeTool builds the parse_datetime tool: the scheduling
// parser the model calls before any scheduling tool. It resolves a
// customer's natural-language expression in the business timezone, falls
// back to the day's opening time when only a date is given, and validates
// the result against opening hours and the cart's most demanding
// minimum-lead-time item.
func NewParseDateTimeTool(catalogStore *catalog.Store, orderStore *orders.Store) Tool {
	return &parseDateTimeTool{catalog: catalogStore, orders: orderStore}
}

func (t *parseDateTimeTool) Name() string { return "parse_datetime" }

func (t *parseDateTimeTool) Description() string {
	return "Resolve a customer's date/time phrase (e.g. 'tomorrow at 7pm', 'Friday 6:30', 'in 2 hours') to an absolute timestamp in the business's timezone, validated against opening hours. Call this before set_scheduled_time or any reservation tool and use the returned scheduled_for value."
}

func (t *parseDateTimeTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "The customer's date/time phrase, verbatim.",
			},
		},
		"required": []string{"expression"},
	}
}

func (t *parseDateTimeTool) Permission() Permission { return ReadOnly }

func (t *parseDateTimeTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	expr, _ := args["expression"].(string)
	if expr == "" {
		return Fail("INVALID_ARGUMENTS", "expression is required"), nil
	}

	loc := time.UTC
	if tenant.Timezone != "" {
		if parsed, err := time.LoadLocation(tenant.Timezone); err == nil {
			loc = parsed
		}
	}
	now := time.Now().In(loc)

	res, err := timeparse.Parse(expr, now)
	if err != nil {
		if errors.Is(err, timeparse.ErrUnrecognized) {
			return Fail("INVALID_DATE_FORMAT", "could not understand that date/time; ask the customer to restate it"), nil
		}
		return nil, fmt.Errorf("parse datetime: %w", err)
	}

	hours, err := t.catalog.EffectiveOpeningHours(ctx, tenant.BusinessID, tenant.BranchID, int(res.At.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("load opening hours: %w", err)
	}

	at := res.At
	if res.DateOnly {
		if hours.IsClosed || !hours.OpenTime.Valid {
			return Fail("BUSINESS_CLOSED", "the business is closed on that day"), nil
		}
		at, err = timeparse.NextOpeningAfter(res.At, hours.OpenTime.String, now)
		if err != nil {
			return nil, fmt.Errorf("resolve opening fallback: %w", err)
		}
	}

	if at.Before(now) {
		return Fail("PAST_DATE_TIME", "that time has already passed"), nil
	}
	if !hours.IsOpenAt(at) {
		return Fail("BUSINESS_CLOSED", "the business is closed at that time"), nil
	}
	if hours.PastLastOrderTime(at) {
		return Fail("LAST_ORDER_TIME_PASSED", "that time is past the last order time for the day"), nil
	}

	if leadHours, err := t.cartLeadHours(ctx, tenant); err != nil {
		return nil, err
	} else if leadHours > 0 && at.Before(now.Add(time.Duration(leadHours)*time.Hour)) {
		return Fail("MIN_SCHEDULE_LEAD_TIME",
			fmt.Sprintf("items in the cart must be scheduled at least %d hours ahead", leadHours)), nil
	}

	return Ok("resolved", map[string]any{
		"scheduled_for": at.Format(time.RFC3339),
		"local":         timeparse.Format(at),
		"weekday":       at.Weekday().String(),
	}), nil
}

// cartLeadHours returns the largest min_schedule_hours across the current
// cart's lines; zero when there is no cart or no schedulable constraint.
func (t *parseDateTimeTool) cartLeadHours(ctx context.Context, tenant TenantContext) (int, error) {
	_, items, err := t.orders.GetCart(ctx, tenant.BusinessID, tenant.OwnerUserID, tenant.CustomerPhone)
	if err != nil {
		return 0, fmt.Errorf("load cart for lead time: %w", err)
	}
	lead := 0
	for _, line := range items {
		item, err := t.catalog.GetItem(ctx, tenant.BusinessID, line.ItemID)
		if err != nil {
			// A line whose item vanished keeps its snapshot price; it
			// cannot constrain scheduling any more.
			continue
		}
		if item.MinScheduleHours > lead {
			lead = item.MinScheduleHours
		}
	}
	return lead, nil
}
