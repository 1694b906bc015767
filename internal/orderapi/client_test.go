package orderapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	apihttp "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/order"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ order.API          = (*Client)(nil)
	_ order.ConfigSource = (*Client)(nil)
)

const iPhoneID = "5f8f8c44b54764421b7156c2"

func newOrderAPIServer(t *testing.T, payPalClientID string) *httptest.Server {
	t.Helper()

	products, err := catalog.NewRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { products.Close() })
	require.NoError(t, products.RunMigrations("../catalog/migrations"))

	svc := service.NewOrderService(repository.NewMemoryRepository(),
		pricing.NewCalculator(pricing.DefaultRules()), zap.NewNop(),
		service.WithProductLookup(products))

	router := apihttp.NewRouter(
		apihttp.NewOrdersHandler(svc, 5*time.Second, nil),
		apihttp.NewProductHandler(products, 5*time.Second, nil),
		apihttp.NewConfigHandler(payPalClientID),
		apihttp.RouterConfig{RequestTimeout: 5 * time.Second, MaxRequestBodySize: 1 << 20},
		zap.NewNop(),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func placeRequest(t *testing.T, c *Client) domain.PlaceOrderRequest {
	t.Helper()
	p, err := c.GetProduct(context.Background(), iPhoneID)
	require.NoError(t, err)
	items := []domain.LineItem{{ProductID: p.ID, Name: p.Name, Image: p.Image, Price: p.Price, Quantity: 2}}
	return domain.PlaceOrderRequest{
		OrderItems:      items,
		ShippingAddress: domain.ShippingAddress{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		PaymentMethod:   domain.PaymentMethodPayPal,
		Prices:          pricing.NewCalculator(pricing.DefaultRules()).Derive(items),
	}
}

func TestClient_OrderLifecycle(t *testing.T) {
	srv := newOrderAPIServer(t, "sb-client")
	ctx := context.Background()
	customer := New(srv.URL, WithActor(domain.Actor{UserID: "alice"}))
	admin := New(srv.URL, WithActor(domain.Actor{UserID: "boss", IsAdmin: true}))

	orderID, err := customer.CreateOrder(ctx, placeRequest(t, customer))
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	o, err := customer.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, o.Status())
	assert.True(t, o.Prices.TotalPrice.Equal(decimal.RequireFromString("1379.98")))

	_, err = admin.DeliverOrder(ctx, orderID)
	assert.ErrorIs(t, err, domain.ErrTransitionConflict)

	paid, err := customer.PayOrder(ctx, orderID, domain.PaymentResult{TransactionID: "TXN-1", Status: "COMPLETED"})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)

	_, err = customer.PayOrder(ctx, orderID, domain.PaymentResult{TransactionID: "TXN-2", Status: "COMPLETED"})
	assert.ErrorIs(t, err, domain.ErrTransitionConflict)

	_, err = customer.DeliverOrder(ctx, orderID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	delivered, err := admin.DeliverOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, delivered.Status())
}

func TestClient_ErrorMapping(t *testing.T) {
	srv := newOrderAPIServer(t, "")
	ctx := context.Background()
	c := New(srv.URL, WithActor(domain.Actor{UserID: "alice"}))

	_, err := c.GetOrder(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.GetOrder(ctx, "0b8f4a8e-58c8-4c39-9d5e-8f2a3c6b9e10")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = c.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	req := placeRequest(t, c)
	req.Prices.TaxPrice = req.Prices.TaxPrice.Add(decimal.NewFromInt(1))
	_, err = c.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, domain.ErrValidation)

	anonymous := New(srv.URL)
	_, err = anonymous.CreateOrder(ctx, placeRequest(t, c))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestClient_PayPalClientID(t *testing.T) {
	ctx := context.Background()

	id, err := New(newOrderAPIServer(t, "sb-client").URL).PayPalClientID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sb-client", id)

	id, err = New(newOrderAPIServer(t, "").URL).PayPalClientID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestClient_ServerErrorIsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal server error","code":"internal_error"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetOrder(context.Background(), "x")

	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
	assert.NotErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestClient_NetworkErrorIsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).GetOrder(context.Background(), "x")

	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(srv.URL)

	for i := 0; i < breakerTrip; i++ {
		_, err := c.GetOrder(context.Background(), "x")
		require.ErrorIs(t, err, domain.ErrRemoteFailure)
	}
	require.EqualValues(t, breakerTrip, hits.Load())

	_, err := c.GetOrder(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
	assert.EqualValues(t, breakerTrip, hits.Load(), "open breaker must not reach the server")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"order not found","code":"not_found"}`))
	}))
	defer srv.Close()
	c := New(srv.URL)

	for i := 0; i < breakerTrip+2; i++ {
		_, err := c.GetOrder(context.Background(), "x")
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	}
	assert.EqualValues(t, breakerTrip+2, hits.Load())
}

func TestClient_ForwardsActorHeaders(t *testing.T) {
	var userID, role string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = r.Header.Get(apihttp.HeaderUserID)
		role = r.Header.Get(apihttp.HeaderUserRole)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"0b8f4a8e-58c8-4c39-9d5e-8f2a3c6b9e10","isPaid":true,"isDelivered":true}`))
	}))
	defer srv.Close()

	o, err := New(srv.URL, WithActor(domain.Actor{UserID: "boss", IsAdmin: true})).DeliverOrder(context.Background(), "0b8f4a8e-58c8-4c39-9d5e-8f2a3c6b9e10")
	require.NoError(t, err)

	assert.Equal(t, "boss", userID)
	assert.Equal(t, apihttp.RoleAdmin, role)
	assert.Equal(t, domain.OrderStatusDelivered, o.Status())
}

func TestClient_DrivesLifecycle(t *testing.T) {
	srv := newOrderAPIServer(t, "sb-client")
	ctx := context.Background()
	c := New(srv.URL, WithActor(domain.Actor{UserID: "alice"}))
	lc := order.NewLifecycle(c, c, pricing.NewCalculator(pricing.DefaultRules()), nil)

	orderID, err := c.CreateOrder(ctx, placeRequest(t, c))
	require.NoError(t, err)

	view, err := lc.Load(ctx, orderID, domain.Actor{UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, view.ShowPayPal)
	assert.Equal(t, "sb-client", view.PayPalClientID)

	paid, err := lc.ConfirmPayment(ctx, orderID, domain.PaymentResult{TransactionID: "TXN-1", Status: "COMPLETED"})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)

	view, err = lc.Load(ctx, orderID, domain.Actor{UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, view.ShowPayPal)
	assert.False(t, view.CanDeliver)
}

func TestClient_ListProducts(t *testing.T) {
	srv := newOrderAPIServer(t, "")

	products, err := New(srv.URL).ListProducts(context.Background())

	require.NoError(t, err)
	assert.Len(t, products, 5)
}
