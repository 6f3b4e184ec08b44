package tools

import (
	"fmt"

	"github.com/ahmadsadek12/convoyd/internal/cart"
	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/reservations"
	"github.com/ahmadsadek12/convoyd/internal/session"
	"github.com/ahmadsadek12/convoyd/internal/support"
	"github.com/ahmadsadek12/convoyd/internal/validate"
)

// NewStandardRegistry builds and registers the full tool catalog the engine
// dispatches over: catalog queries, the scheduling parser, cart ops, order
// ops, reservation ops, support ops, and the three validators. cmd/convoyd
// wires this once at process start from the same stores the rest of the
// server uses.
func NewStandardRegistry(
	catalogStore *catalog.Store,
	cartManager *cart.Manager,
	orderStore *orders.Store,
	reservationStore *reservations.Store,
	supportStore *support.Store,
	sessionStore *session.Store,
	checker *validate.Checker,
) (*Registry, error) {
	registry := NewRegistry()

	all := []Tool{
		NewSearchCatalogTool(catalogStore),
		NewGetItemTool(catalogStore),
		NewParseDateTimeTool(catalogStore, orderStore),
		NewAddCartLineTool(cartManager),
		NewUpdateCartLineTool(cartManager),
		NewRemoveCartLineTool(cartManager),
		NewSetDeliveryTypeTool(cartManager),
		NewSetCartNotesTool(cartManager),
		NewSetScheduledTimeTool(cartManager),
		NewValidateCartTool(checker, orderStore),
		NewValidateReservationRequestTool(checker, reservationStore),
		NewValidateCancellationTool(checker, orderStore, reservationStore),
		NewConfirmOrderTool(orderStore),
		NewCancelOrderTool(orderStore),
		NewCreateTableReservationTool(reservationStore),
		NewCancelReservationTool(reservationStore),
		NewAddPreOrderedItemTool(reservationStore),
		NewRemovePreOrderedItemTool(reservationStore),
		NewRequestHumanAssistanceTool(supportStore, sessionStore),
	}

	for _, tool := range all {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("register tool %s: %w", tool.Name(), err)
		}
	}
	return registry, nil
}
