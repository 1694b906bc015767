package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter mounts the Order API, the payment config endpoint and the
// product catalog under /api.
func NewRouter(orders *OrdersHandler, products *ProductHandler, cfg *ConfigHandler, rc RouterConfig, l *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(l))
	r.Use(middleware.Timeout(rc.RequestTimeout))
	r.Use(middleware.RequestSize(rc.MaxRequestBodySize))
	r.Use(AuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orders.CreateOrder)
			r.Get("/", orders.ListOrders)
			r.Get("/{order_id}", orders.GetOrder)
			r.Put("/{order_id}/pay", orders.PayOrder)
			r.Put("/{order_id}/deliver", orders.DeliverOrder)
		})
		r.Get("/config/paypal", cfg.PayPal)
		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Get("/{product_id}", products.Get)
		})
	})

	return r
}
