package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopmesh/orderflow/internal/pkg/broker"
	"github.com/shopmesh/orderflow/internal/pkg/wire"
	"github.com/shopmesh/orderflow/internal/shop/catalog"
	"github.com/shopmesh/orderflow/internal/shop/orders"
)

// Handler serves the shop's HTTP surface: catalog reads/writes and the
// synchronous order submission that rides on the async queue exchange.
type Handler struct {
	catalog   *catalog.Service
	publisher *orders.Publisher
	tracker   *orders.Tracker
}

func NewHandler(c *catalog.Service, p *orders.Publisher, t *orders.Tracker) *Handler {
	return &Handler{catalog: c, publisher: p, tracker: t}
}

// CreateItem adds a catalog item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	item, err := h.catalog.Create(r.Context(), req.Name, req.Price)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidItem) || errors.Is(err, catalog.ErrInvalidPrice) {
			writeError(w, http.StatusBadRequest, "invalid_item", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "catalog_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, mapItemToResponse(item))
}

// ListItems returns the full catalog.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog_error", err.Error())
		return
	}

	out := make([]ItemResponse, len(items))
	for i := range items {
		out[i] = mapItemToResponse(&items[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// SubmitOrder resolves the requested item ids, publishes the order to
// fulfillment, and blocks until the completion arrives or the wait
// deadline passes. The client sees an async two-service exchange as one
// synchronous call.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items, err := h.catalog.Snapshot(r.Context(), req.IDs)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown_item", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "catalog_error", err.Error())
		return
	}

	requester := requesterFrom(r.Context())

	correlationID, err := h.publisher.SubmitOrder(r.Context(), requester, mapItemsToWire(items))
	if err != nil {
		if errors.Is(err, broker.ErrPublish) {
			writeError(w, http.StatusBadGateway, "publish_failed", "order could not be submitted")
			return
		}
		writeError(w, http.StatusInternalServerError, "submit_failed", err.Error())
		return
	}

	start := time.Now()
	order, err := h.tracker.Await(r.Context(), correlationID)
	if err != nil {
		if errors.Is(err, orders.ErrAwaitTimeout) {
			// The order may still have been persisted by fulfillment; with
			// fire-and-forget messaging this cannot be known here.
			slog.WarnContext(r.Context(), "order confirmation timed out",
				"correlation_id", correlationID,
				"waited", time.Since(start),
			)
			writeError(w, http.StatusRequestTimeout, "confirmation_timeout",
				"order was submitted but not confirmed in time")
			return
		}
		writeError(w, http.StatusInternalServerError, "await_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

// GetOrderStatus reports the tracked state of an in-flight or recently
// completed order.
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "id")

	order, ok := h.tracker.Get(correlationID)
	if !ok {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func mapItemToResponse(it *catalog.Item) ItemResponse {
	return ItemResponse{
		ID:        it.ID,
		Name:      it.Name,
		Price:     it.Price,
		CreatedAt: it.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func mapItemsToWire(items []catalog.Item) []wire.Item {
	out := make([]wire.Item, len(items))
	for i, it := range items {
		out[i] = wire.Item{ID: it.ID, Name: it.Name, Price: it.Price}
	}
	return out
}

func mapOrderToResponse(o orders.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{ID: it.ID, Name: it.Name, Price: it.Price}
	}
	return OrderResponse{
		CorrelationID: o.CorrelationID,
		Requester:     o.Requester,
		Status:        string(o.Status),
		Items:         items,
		TotalPrice:    o.TotalPrice,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
