package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductRepository interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type ProductHandler struct {
	products ProductRepository
	timeout  time.Duration
	logger   *zap.Logger
}

func NewProductHandler(products ProductRepository, timeout time.Duration, l *zap.Logger) *ProductHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &ProductHandler{
		products: products,
		timeout:  timeout,
		logger:   l,
	}
}

// GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.GetAllProducts(ctx)
	if err != nil {
		handleServiceError(w, logger.WithContext(r.Context(), h.logger), err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

// GET /api/products/{product_id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "missing_product_id", "product_id is required")
		return
	}

	product, err := h.products.GetProduct(ctx, productID)
	if err != nil {
		handleServiceError(w, logger.WithContext(r.Context(), h.logger), err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}
