package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/identity"
	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/session"
)

// PromptContext carries the tenant/session snapshot the system prompt is
// built from: business profile, branch, opening hours, cart snapshot,
// session state, and business-type terminology.
type PromptContext struct {
	Business     identity.Principal
	Branch       *identity.Principal
	OpeningHours *catalog.OpeningHours
	Terminology  string
	Cart         *orders.Order
	CartItems    []orders.OrderItem
	SessionState session.State
	Now          time.Time
}

// BuildSystemPrompt assembles the per-turn system prompt from the persona,
// tool-ordering guidance, current-time context, and the tenant/session
// snapshot in pc.
func BuildSystemPrompt(pc PromptContext) string {
	var b strings.Builder
	b.WriteString(basePersona)
	b.WriteString("\n\n")
	b.WriteString(toolGuidance)

	if timeLine := currentTimeContextLine(pc.Now, pc.Business.Timezone); timeLine != "" {
		b.WriteString("\n\n")
		b.WriteString(timeLine)
		b.WriteString("\n")
		b.WriteString(resolveRelativeTimeInstruction)
	}

	b.WriteString("\n\nBusiness context:\n")
	fmt.Fprintf(&b, "- Business: %s (%s)\n", pc.Business.Name, pc.Business.BusinessType)
	if pc.Branch != nil {
		fmt.Fprintf(&b, "- Branch: %s\n", pc.Branch.Name)
	}
	fmt.Fprintf(&b, "- Reservable unit is called a %q for this business.\n", pc.Terminology)
	if pc.OpeningHours != nil {
		if pc.OpeningHours.IsClosed {
			b.WriteString("- The business is closed today.\n")
		} else if pc.OpeningHours.OpenTime.Valid && pc.OpeningHours.CloseTime.Valid {
			fmt.Fprintf(&b, "- Today's hours: %s to %s.\n", pc.OpeningHours.OpenTime.String, pc.OpeningHours.CloseTime.String)
			if pc.OpeningHours.LastOrderTime.Valid {
				fmt.Fprintf(&b, "- Last order accepted at %s.\n", pc.OpeningHours.LastOrderTime.String)
			}
		}
	}

	b.WriteString("\nSession state: ")
	b.WriteString(string(pc.SessionState))
	b.WriteString("\n")

	if pc.Cart != nil && len(pc.CartItems) > 0 {
		b.WriteString("\nCurrent cart:\n")
		for _, item := range pc.CartItems {
			fmt.Fprintf(&b, "- %dx %s (%.2f each)\n", item.Quantity, item.NameAtTime, item.PriceAtTime)
		}
		fmt.Fprintf(&b, "Subtotal: %.2f\n", pc.Cart.Subtotal)
	} else {
		b.WriteString("\nCurrent cart: empty\n")
	}

	return b.String()
}

// currentTimeContextLine returns a one-line current-time context string in
// the business's configured timezone.
func currentTimeContextLine(now time.Time, timezone string) string {
	if now.IsZero() {
		return ""
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil || loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return fmt.Sprintf("Current time: %s (%s)", local.Format(time.RFC3339), loc.String())
}
