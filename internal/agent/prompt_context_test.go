package agent

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/identity"
	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/session"
)

func TestBuildSystemPromptIncludesBusinessAndTerminology(t *testing.T) {
	pc := PromptContext{
		Business:     identity.Principal{Name: "Luigi's", BusinessType: "fnb", Timezone: "UTC"},
		Terminology:  "table",
		SessionState: session.StateBotActive,
		Now:          time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC),
	}

	got := BuildSystemPrompt(pc)
	if !strings.Contains(got, "Business: Luigi's (fnb)") {
		t.Fatalf("expected business line, got %q", got)
	}
	if !strings.Contains(got, `Reservable unit is called a "table"`) {
		t.Fatalf("expected terminology line, got %q", got)
	}
	if !strings.Contains(got, "Session state: bot_active") {
		t.Fatalf("expected session state line, got %q", got)
	}
	if !strings.Contains(got, "Current cart: empty") {
		t.Fatalf("expected empty cart line when no cart is attached, got %q", got)
	}
}

func TestBuildSystemPromptIncludesBranchAndClosedHours(t *testing.T) {
	pc := PromptContext{
		Business:     identity.Principal{Name: "Luigi's", BusinessType: "fnb", Timezone: "UTC"},
		Branch:       &identity.Principal{Name: "Downtown Branch"},
		OpeningHours: &catalog.OpeningHours{IsClosed: true},
		Terminology:  "table",
		Now:          time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC),
	}

	got := BuildSystemPrompt(pc)
	if !strings.Contains(got, "Branch: Downtown Branch") {
		t.Fatalf("expected branch line, got %q", got)
	}
	if !strings.Contains(got, "The business is closed today.") {
		t.Fatalf("expected closed-hours line, got %q", got)
	}
}

func TestBuildSystemPromptIncludesOpenHoursAndLastOrderTime(t *testing.T) {
	pc := PromptContext{
		Business:    identity.Principal{Name: "Luigi's", BusinessType: "fnb", Timezone: "UTC"},
		Terminology: "table",
		OpeningHours: &catalog.OpeningHours{
			OpenTime:      sql.NullString{String: "09:00", Valid: true},
			CloseTime:     sql.NullString{String: "22:00", Valid: true},
			LastOrderTime: sql.NullString{String: "21:30", Valid: true},
		},
		Now: time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC),
	}

	got := BuildSystemPrompt(pc)
	if !strings.Contains(got, "Today's hours: 09:00 to 22:00.") {
		t.Fatalf("expected open-hours line, got %q", got)
	}
	if !strings.Contains(got, "Last order accepted at 21:30.") {
		t.Fatalf("expected last-order-time line, got %q", got)
	}
}

func TestBuildSystemPromptIncludesCartSnapshot(t *testing.T) {
	pc := PromptContext{
		Business:    identity.Principal{Name: "Luigi's", BusinessType: "fnb", Timezone: "UTC"},
		Terminology: "table",
		Cart:        &orders.Order{Subtotal: 24.5},
		CartItems: []orders.OrderItem{
			{NameAtTime: "Margherita Pizza", Quantity: 2, PriceAtTime: 12.25},
		},
		Now: time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC),
	}

	got := BuildSystemPrompt(pc)
	if !strings.Contains(got, "Current cart:") {
		t.Fatalf("expected cart header, got %q", got)
	}
	if !strings.Contains(got, "2x Margherita Pizza (12.25 each)") {
		t.Fatalf("expected cart line item, got %q", got)
	}
	if !strings.Contains(got, "Subtotal: 24.50") {
		t.Fatalf("expected subtotal line, got %q", got)
	}
}

func TestCurrentTimeContextLineUsesBusinessTimezone(t *testing.T) {
	pc := PromptContext{
		Business:    identity.Principal{Name: "Luigi's", BusinessType: "fnb", Timezone: "UTC"},
		Terminology: "table",
		Now:         time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC),
	}

	got := BuildSystemPrompt(pc)
	if !strings.Contains(got, "Current time: 2026-02-17T12:00:00Z (UTC)") {
		t.Fatalf("expected current-time line in the business timezone, got %q", got)
	}
}

func TestCurrentTimeContextLineOmittedWhenNowIsZero(t *testing.T) {
	pc := PromptContext{
		Business:    identity.Principal{Name: "Luigi's", BusinessType: "fnb", Timezone: "UTC"},
		Terminology: "table",
	}

	got := BuildSystemPrompt(pc)
	if strings.Contains(got, "Current time:") {
		t.Fatalf("expected no current-time line when Now is zero, got %q", got)
	}
}
