package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/reservations"
)

func TestWithTenantRoundTrips(t *testing.T) {
	ctx := WithTenant(context.Background(), TenantContext{BusinessID: "biz_1", BusinessType: "fnb"})
	tc, ok := TenantFromContext(ctx)
	if !ok {
		t.Fatalf("expected tenant context to be present")
	}
	if tc.BusinessID != "biz_1" || tc.BusinessType != "fnb" {
		t.Fatalf("unexpected tenant context: %#v", tc)
	}
}

func TestTenantFromContext_AbsentReturnsFalse(t *testing.T) {
	if _, ok := TenantFromContext(context.Background()); ok {
		t.Fatalf("expected no tenant context on a bare context")
	}
}

// TestConcreteTools_MissingTenantContextFailsCleanly exercises every concrete tool's "missing tenant
// context" guard, the one path common to all of them that never touches a
// nil-valued store field.
func TestConcreteTools_MissingTenantContextFailsCleanly(t *testing.T) {
	cases := []Tool{
		NewSearchCatalogTool(nil),
		NewGetItemTool(nil),
		NewAddCartLineTool(nil),
		NewUpdateCartLineTool(nil),
		NewRemoveCartLineTool(nil),
		NewSetDeliveryTypeTool(nil),
		NewSetCartNotesTool(nil),
		NewSetScheduledTimeTool(nil),
		NewParseDateTimeTool(nil, nil),
		NewValidateCartTool(nil, nil),
		NewValidateReservationRequestTool(nil, nil),
		NewValidateCancellationTool(nil, nil, nil),
		NewConfirmOrderTool(nil),
		NewCancelOrderTool(nil),
		NewCreateTableReservationTool(nil),
		NewCancelReservationTool(nil),
		NewAddPreOrderedItemTool(nil),
		NewRemovePreOrderedItemTool(nil),
		NewRequestHumanAssistanceTool(nil, nil),
	}

	for _, tool := range cases {
		result, err := tool.Execute(context.Background(), map[string]any{})
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", tool.Name(), err)
		}
		if result.Success || result.Error == nil || result.Error.Code != "INTERNAL_ERROR" {
			t.Fatalf("%s: expected INTERNAL_ERROR envelope, got %#v", tool.Name(), result)
		}
	}
}

func tenantCtx() context.Context {
	return WithTenant(context.Background(), TenantContext{
		BusinessID:    "biz_1",
		OwnerUserID:   "owner_1",
		CustomerPhone: "+15551234567",
		Platform:      "whatsapp",
		SessionID:     "sess_1",
		BusinessType:  "fnb",
	})
}

func TestSearchCatalogTool_RejectsEmptyQuery(t *testing.T) {
	tool := NewSearchCatalogTool(nil)
	result, err := tool.Execute(tenantCtx(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestAddCartLineTool_RejectsMissingItemID(t *testing.T) {
	tool := NewAddCartLineTool(nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestSetDeliveryTypeTool_RejectsUnknownValue(t *testing.T) {
	tool := NewSetDeliveryTypeTool(nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{"delivery_type": "carrier_pigeon"})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestSetScheduledTimeTool_RejectsPastTime(t *testing.T) {
	tool := NewSetScheduledTimeTool(nil)
	past := time.Now().Add(-24 * time.Hour).Format(time.RFC3339)
	result, _ := tool.Execute(tenantCtx(), map[string]any{"scheduled_for": past})
	if result.Success || result.Error.Code != "SLOT_IN_PAST" {
		t.Fatalf("expected SLOT_IN_PAST, got %#v", result)
	}
}

func TestSetScheduledTimeTool_RejectsMalformedTimestamp(t *testing.T) {
	tool := NewSetScheduledTimeTool(nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{"scheduled_for": "tomorrow at 7pm"})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestParseDateTimeTool_RequiresExpression(t *testing.T) {
	tool := NewParseDateTimeTool(nil, nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestParseDateTimeTool_UnrecognizedExpression(t *testing.T) {
	tool := NewParseDateTimeTool(nil, nil)
	result, err := tool.Execute(tenantCtx(), map[string]any{"expression": "whenever suits"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.Error.Code != "INVALID_DATE_FORMAT" {
		t.Fatalf("expected INVALID_DATE_FORMAT, got %#v", result)
	}
}

func TestCreateTableReservationTool_IneligibleForNonFnBBusiness(t *testing.T) {
	tool := NewCreateTableReservationTool(nil)
	ctx := WithTenant(context.Background(), TenantContext{BusinessID: "biz_1", BusinessType: "salon"})
	result, _ := tool.Execute(ctx, map[string]any{
		"date": "2026-08-01", "time": "19:00", "guests": 2, "customer_name": "Alex",
	})
	if result.Success || result.Error.Code != "INELIGIBLE" {
		t.Fatalf("expected INELIGIBLE, got %#v", result)
	}
}

func TestCreateTableReservationTool_EligibleRequiresAddonAndBusinessType(t *testing.T) {
	tool, ok := NewCreateTableReservationTool(nil).(EligibilityChecker)
	if !ok {
		t.Fatalf("expected create_table_reservation to implement EligibilityChecker")
	}

	cases := []struct {
		name         string
		businessType string
		addons       map[string]bool
		want         bool
	}{
		{"fnb with addon", "fnb", map[string]bool{"table_reservations": true}, true},
		{"fnb without addon", "fnb", map[string]bool{}, false},
		{"salon with addon", "salon", map[string]bool{"table_reservations": true}, false},
	}
	for _, tc := range cases {
		got, err := tool.Eligible(context.Background(), EligibilityContext{BusinessType: tc.businessType, ActiveAddons: tc.addons})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected eligible=%v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCreateTableReservationTool_RejectsMalformedDate(t *testing.T) {
	tool := NewCreateTableReservationTool(nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{
		"date": "next friday", "time": "19:00", "guests": 2, "customer_name": "Alex",
	})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestCreateTableReservationTool_RejectsMissingCustomerName(t *testing.T) {
	tool := NewCreateTableReservationTool(nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{
		"date": "2026-08-01", "time": "19:00", "guests": 2,
	})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestCancelReservationTool_RejectsMissingID(t *testing.T) {
	tool := NewCancelReservationTool(nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestValidateCancellationTool_RequiresAnID(t *testing.T) {
	tool := NewValidateCancellationTool(nil, nil, nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestValidateReservationRequestTool_RejectsNonPositiveGuests(t *testing.T) {
	tool := NewValidateReservationRequestTool(nil, nil)
	result, _ := tool.Execute(tenantCtx(), map[string]any{
		"date": "2026-08-01", "time": "19:00", "guests": 0,
	})
	if result.Success || result.Error.Code != "INVALID_ARGUMENTS" {
		t.Fatalf("expected INVALID_ARGUMENTS, got %#v", result)
	}
}

func TestReservationCancellationReport_AlreadyCancelledFails(t *testing.T) {
	r := &reservations.Reservation{Status: reservations.StatusCancelled}
	report := reservationCancellationReport(r)
	if report.Valid {
		t.Fatalf("expected an already-cancelled reservation to be invalid")
	}
	if len(report.Errors) != 1 || !strings.Contains(string(report.Errors[0].Code), "ALREADY_TERMINAL") {
		t.Fatalf("expected ALREADY_TERMINAL, got %#v", report.Errors)
	}
}

func TestReservationCancellationReport_PastSlotFails(t *testing.T) {
	r := &reservations.Reservation{
		Status: reservations.StatusConfirmed,
		Date:   time.Now().Add(-48 * time.Hour),
		Time:   "12:00",
	}
	report := reservationCancellationReport(r)
	if report.Valid {
		t.Fatalf("expected a reservation whose slot has passed to be invalid")
	}
}

func TestReservationCancellationReport_FutureConfirmedPasses(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	r := &reservations.Reservation{
		Status: reservations.StatusConfirmed,
		Date:   future,
		Time:   future.Format("15:04"),
	}
	report := reservationCancellationReport(r)
	if !report.Valid {
		t.Fatalf("expected a future confirmed reservation to be cancellable, got %#v", report.Errors)
	}
}
