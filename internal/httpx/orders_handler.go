package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	kafkax "github.com/ariefcatur/go-shop-backend/internal/kafka"
	"github.com/ariefcatur/go-shop-backend/internal/orders"
	"github.com/ariefcatur/go-shop-backend/internal/redisx"
	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type Coordinator interface {
	PlaceOrder(ctx context.Context, userID string, items []shop.LineItem) (*shop.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*shop.Order, error)
}

type OrderReads interface {
	GetOrder(ctx context.Context, orderID string) (*shop.Order, error)
	ListByUser(ctx context.Context, userID string) ([]shop.Order, error)
	GetStatus(ctx context.Context, orderID string) (shop.Status, error)
	UpdateStatus(ctx context.Context, orderID string, to shop.Status) (*shop.Order, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type StatusCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type OrdersHandler struct {
	Coordinator Coordinator
	Repo        OrderReads
	Placed      Publisher // order.placed
	Cancelled   Publisher // order.cancelled
	Cache       StatusCache
	Service     string
	Log         zerolog.Logger
}

type PlaceOrderReq struct {
	UserID string          `json:"user_id"`
	Items  []shop.LineItem `json:"items"`
}

type UpdateStatusReq struct {
	Status shop.Status `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Delete("/orders/{id}", h.cancelOrder)
	r.Get("/users/{id}/orders", h.listUserOrders)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Message: "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "missing_fields", Message: "user_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Coordinator.PlaceOrder(ctx, req.UserID, req.Items)
	if err != nil {
		var ise *shop.InsufficientStockError
		if errors.As(err, &ise) {
			ordersRejected.Inc()
		}
		WriteError(w, err)
		return
	}
	ordersPlaced.Inc()

	h.cacheStatus(ctx, order.ID, order.Status)
	h.publish(h.Placed, orders.EventOrderPlaced, order.ID, r.Header.Get("X-Request-Id"),
		orders.OrderPlacedPayload{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Items:      orders.SnapshotItems(order.Items),
			TotalCents: order.TotalCents,
		})

	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Coordinator.CancelOrder(ctx, orderID)
	if err != nil {
		WriteError(w, err)
		return
	}
	ordersCancelled.Inc()

	h.cacheStatus(ctx, orderID, shop.StatusCancelled)
	h.publish(h.Cancelled, orders.EventOrderCancelled, orderID, r.Header.Get("X-Request-Id"),
		orders.OrderCancelledPayload{
			OrderID: orderID,
			UserID:  order.UserID,
			Items:   orders.SnapshotItems(order.Items),
		})

	writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": "cancelled"})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Repo.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	status, err := h.Repo.GetStatus(ctx, orderID)
	if err != nil {
		WriteError(w, err)
		return
	}
	body, _ := json.Marshal(map[string]shop.Status{"status": status})
	_ = h.Cache.Set(ctx, key, string(body), redisx.TTLStatusCache)
	writeJSON(w, http.StatusOK, json.RawMessage(body))
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Message: "invalid json"})
		return
	}
	if !shop.ValidStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_status", Message: fmt.Sprintf("invalid order status: %s", req.Status)})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Repo.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Repo.ListByUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if list == nil {
		list = []shop.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, status shop.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]shop.Status{"status": status})
	if err := h.Cache.Set(ctx, key, string(body), redisx.TTLStatusCache); err != nil {
		h.Log.Warn().Err(err).Str("order_id", orderID).Msg("cache status")
	}
}

func (h *OrdersHandler) publish(p Publisher, eventType, orderID, traceID string, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
