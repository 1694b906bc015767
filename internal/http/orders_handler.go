package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, actor domain.Actor, req domain.PlaceOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	PayOrder(ctx context.Context, actor domain.Actor, orderID string, result domain.PaymentResult) (*domain.Order, error)
	DeliverOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
	logger  *zap.Logger
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, l *zap.Logger) *OrdersHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		logger:  l,
	}
}

type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
}

// POST /api/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req domain.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	order, err := h.orders.PlaceOrder(ctx, actor, req)
	if err != nil {
		handleServiceError(w, logger.WithContext(r.Context(), h.logger), err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateOrderResponse{OrderID: order.ID.String()})
}

// GET /api/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := requireUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(ctx, actor)
	if err != nil {
		handleServiceError(w, logger.WithContext(r.Context(), h.logger), err)
		return
	}

	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		handleServiceError(w, logger.WithContext(r.Context(), h.logger), err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PUT /api/orders/{order_id}/pay
func (h *OrdersHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(w, r)
	if !ok {
		return
	}

	var result domain.PaymentResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	order, err := h.orders.PayOrder(ctx, actor, orderID, result)
	if err != nil {
		handleServiceError(w, logger.WithContext(r.Context(), h.logger), err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PUT /api/orders/{order_id}/deliver
func (h *OrdersHandler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.DeliverOrder(ctx, actor, orderID)
	if err != nil {
		handleServiceError(w, logger.WithContext(r.Context(), h.logger), err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func requireUser(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor := getActorFromContext(r.Context())
	if actor.UserID == "" {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "missing user authentication")
		return actor, false
	}
	return actor, true
}

func requireOrderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return "", false
	}
	return orderID, true
}
