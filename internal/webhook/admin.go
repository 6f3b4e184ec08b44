package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/coldstore"
	"github.com/ahmadsadek12/convoyd/internal/dispatch"
	"github.com/ahmadsadek12/convoyd/internal/identity"
	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/reservations"
)

// AdminHandler serves the dashboard's tenant management surface.
type AdminHandler struct {
	identity     *identity.Store
	catalog      *catalog.Store
	orders       *orders.Store
	reservations *reservations.Store
	coldStore    *coldstore.Store
	rotator      *dispatch.TokenRotator
}

// NewAdminHandler builds an AdminHandler over the already-constructed
// domain stores.
func NewAdminHandler(identityStore *identity.Store, catalogStore *catalog.Store, orderStore *orders.Store, reservationStore *reservations.Store, coldStore *coldstore.Store, rotator *dispatch.TokenRotator) *AdminHandler {
	return &AdminHandler{identity: identityStore, catalog: catalogStore, orders: orderStore, reservations: reservationStore, coldStore: coldStore, rotator: rotator}
}

// Routes mounts the admin surface under r, guarded by bearer auth.
func (a *AdminHandler) Routes(r chi.Router) {
	r.Get("/businesses/{business_id}/addons/{addon_key}", a.getAddon)
	r.Put("/businesses/{business_id}/addons/{addon_key}", a.setAddon)

	r.Get("/businesses/{business_id}/items/{item_id}", a.getItem)
	r.Get("/businesses/{business_id}/items", a.searchItems)
	r.Post("/businesses/{business_id}/items", a.createItem)
	r.Patch("/businesses/{business_id}/items/{item_id}/availability", a.setItemAvailability)
	r.Patch("/businesses/{business_id}/items/{item_id}/price", a.setItemPrice)
	r.Delete("/businesses/{business_id}/items/{item_id}", a.deleteItem)

	r.Get("/businesses/{business_id}/tables", a.listTables)

	r.Get("/businesses/{business_id}/orders/{order_id}", a.getOrder)
	r.Post("/businesses/{business_id}/orders/{order_id}/accept", a.acceptOrder)
	r.Post("/businesses/{business_id}/orders/{order_id}/complete", a.completeOrder)
	r.Post("/businesses/{business_id}/orders/{order_id}/cancel", a.cancelOrder)
	r.Post("/businesses/{business_id}/orders/{order_id}/reject", a.rejectOrder)
	r.Patch("/businesses/{business_id}/orders/{order_id}/delivery-price", a.setDeliveryPrice)

	// Supplemented feature: read back an archived order's cold-store record
	// by id, since the operational row no longer exists once archived.
	r.Get("/order-logs/{order_id}", a.getOrderLog)

	r.Put("/businesses/{business_id}/integrations/{platform}", a.setIntegration)

	r.Get("/businesses/{business_id}/reservations/{reservation_id}", a.getReservation)
	r.Post("/businesses/{business_id}/reservations/{reservation_id}/cancel", a.cancelReservation)
	r.Patch("/businesses/{business_id}/reservations/{reservation_id}/status", a.setReservationStatus)
	r.Get("/businesses/{business_id}/reservations/{reservation_id}/items", a.listReservationItems)
}

func (a *AdminHandler) getAddon(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	addonKey := chi.URLParam(r, "addon_key")
	active, err := a.identity.IsAddonActive(r.Context(), businessID, addonKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]any{"business_id": businessID, "addon_key": addonKey, "active": active})
}

func (a *AdminHandler) setAddon(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	addonKey := chi.URLParam(r, "addon_key")

	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := a.identity.SetAddonStatus(r.Context(), businessID, addonKey, body.Active); err != nil {
		writeError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]any{"business_id": businessID, "addon_key": addonKey, "active": body.Active})
}

func (a *AdminHandler) getItem(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	itemID := chi.URLParam(r, "item_id")
	item, err := a.catalog.GetItem(r.Context(), businessID, itemID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeData(w, http.StatusOK, item)
}

func (a *AdminHandler) searchItems(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	items, err := a.catalog.SearchItems(r.Context(), businessID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *AdminHandler) createItem(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")

	var body struct {
		Name     string  `json:"name"`
		ItemType string  `json:"item_type"`
		Price    float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	item, err := a.catalog.CreateItem(r.Context(), catalog.CreateItemParams{
		BusinessID:  businessID,
		OwnerUserID: businessID,
		Name:        body.Name,
		ItemType:    catalog.ItemType(body.ItemType),
		Price:       body.Price,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create_failed", err.Error())
		return
	}
	writeData(w, http.StatusCreated, item)
}

func (a *AdminHandler) setItemAvailability(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	itemID := chi.URLParam(r, "item_id")

	var body struct {
		Availability string `json:"availability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := a.catalog.SetAvailability(r.Context(), businessID, itemID, catalog.Availability(body.Availability)); err != nil {
		writeError(w, http.StatusBadRequest, "update_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *AdminHandler) setItemPrice(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	itemID := chi.URLParam(r, "item_id")

	var body struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := a.catalog.UpdatePrice(r.Context(), businessID, itemID, body.Price); err != nil {
		writeError(w, http.StatusBadRequest, "update_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *AdminHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	itemID := chi.URLParam(r, "item_id")
	if err := a.catalog.SoftDelete(r.Context(), businessID, itemID); err != nil {
		writeError(w, http.StatusBadRequest, "delete_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *AdminHandler) listTables(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	tables, err := a.catalog.ListTables(r.Context(), businessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, tables)
}

func (a *AdminHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	orderID := chi.URLParam(r, "order_id")
	order, items, err := a.orders.GetOrder(r.Context(), businessID, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]any{"order": order, "items": items})
}

const adminChangedBy = "admin"

func (a *AdminHandler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	businessID, orderID := chi.URLParam(r, "business_id"), chi.URLParam(r, "order_id")
	order, err := a.orders.ConfirmOrder(r.Context(), businessID, orderID, adminChangedBy, time.Now())
	writeTransitionResult(w, order, err)
}

func (a *AdminHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	businessID, orderID := chi.URLParam(r, "business_id"), chi.URLParam(r, "order_id")
	order, err := a.orders.CompleteOrder(r.Context(), businessID, orderID, adminChangedBy)
	writeTransitionResult(w, order, err)
}

func (a *AdminHandler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	businessID, orderID := chi.URLParam(r, "business_id"), chi.URLParam(r, "order_id")
	order, err := a.orders.RejectOrder(r.Context(), businessID, orderID, adminChangedBy)
	writeTransitionResult(w, order, err)
}

func (a *AdminHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	businessID, orderID := chi.URLParam(r, "business_id"), chi.URLParam(r, "order_id")
	order, err := a.orders.CancelOrder(r.Context(), businessID, orderID, adminChangedBy, time.Now())
	writeTransitionResult(w, order, err)
}

func writeTransitionResult(w http.ResponseWriter, order *orders.Order, err error) {
	if err != nil {
		writeError(w, http.StatusBadRequest, "transition_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, order)
}

func (a *AdminHandler) setDeliveryPrice(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	orderID := chi.URLParam(r, "order_id")

	var body struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	order, err := a.orders.AmendDeliveryPrice(r.Context(), businessID, orderID, body.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "update_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, order)
}

// setIntegration rotates a tenant's channel credentials. The rotator holds
// the per-tenant refresh lock for the duration; a concurrent save for the
// same (business, platform) pair is refused with 409 refresh_in_progress
// rather than interleaved.
func (a *AdminHandler) setIntegration(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	platform := chi.URLParam(r, "platform")

	var body struct {
		AccessToken   string `json:"access_token"`
		PhoneOrPageID string `json:"phone_or_page_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if body.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "access_token is required")
		return
	}

	err := a.rotator.Rotate(r.Context(), dispatch.Credentials{
		BusinessID:    businessID,
		Platform:      platform,
		AccessToken:   body.AccessToken,
		PhoneOrPageID: body.PhoneOrPageID,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrRefreshInProgress) {
			writeError(w, http.StatusConflict, "refresh_in_progress", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *AdminHandler) getOrderLog(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	log, err := a.coldStore.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, coldstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no archived log for order "+orderID)
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, log)
}

func (a *AdminHandler) getReservation(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	reservationID := chi.URLParam(r, "reservation_id")
	reservation, err := a.reservations.Get(r.Context(), businessID, reservationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeData(w, http.StatusOK, reservation)
}

func (a *AdminHandler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	reservationID := chi.URLParam(r, "reservation_id")
	reservation, err := a.reservations.Cancel(r.Context(), businessID, reservationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cancel_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, reservation)
}

// setReservationStatus handles the business-side confirmed -> completed /
// no_show transitions; cancellation has its own endpoint above since it's
// also reachable from the conversational engine.
func (a *AdminHandler) setReservationStatus(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")
	reservationID := chi.URLParam(r, "reservation_id")

	var body struct {
		Status reservations.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	reservation, err := a.reservations.UpdateStatus(r.Context(), businessID, reservationID, body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "update_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, reservation)
}

func (a *AdminHandler) listReservationItems(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservation_id")
	items, err := a.reservations.ListItems(r.Context(), reservationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]any{"items": items})
}
