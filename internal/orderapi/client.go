// Package orderapi is the storefront's HTTP client for the Order API.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	apihttp "github.com/fjod/storefront/internal/http"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second

	// failed calls in a row before the breaker opens
	breakerTrip    = 5
	breakerTimeout = 30 * time.Second
)

// serverError is a 5xx answer. It counts against the breaker; 4xx answers do not.
type serverError struct {
	status int
	body   errorBody
}

func (e *serverError) Error() string {
	return fmt.Sprintf("order api returned %d: %s", e.status, e.body.Error)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Client implements the order lifecycle's API and ConfigSource and the cart's
// ProductSource over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	actor      domain.Actor
	logger     *zap.Logger
}

type Option func(*Client)

// WithActor sets the identity forwarded in the X-User-ID and X-User-Role headers.
func WithActor(actor domain.Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "order-api",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrip
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

func (c *Client) CreateOrder(ctx context.Context, req domain.PlaceOrderRequest) (string, error) {
	var resp apihttp.CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &resp, domain.ErrOrderNotFound); err != nil {
		return "", err
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("%w: order api returned no order id", domain.ErrRemoteFailure)
	}
	return resp.OrderID, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, http.MethodGet, orderPath(orderID), nil, &o, domain.ErrOrderNotFound); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) PayOrder(ctx context.Context, orderID string, result domain.PaymentResult) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, http.MethodPut, orderPath(orderID)+"/pay", result, &o, domain.ErrOrderNotFound); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) DeliverOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, http.MethodPut, orderPath(orderID)+"/deliver", nil, &o, domain.ErrOrderNotFound); err != nil {
		return nil, err
	}
	return &o, nil
}

// PayPalClientID returns "" when the server has no client id configured.
func (c *Client) PayPalClientID(ctx context.Context) (string, error) {
	var id string
	if err := c.do(ctx, http.MethodGet, "/api/config/paypal", nil, &id, domain.ErrRemoteFailure); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	var products []*domain.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &products, domain.ErrRemoteFailure); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	path := "/api/products/" + url.PathEscape(productID)
	if err := c.do(ctx, http.MethodGet, path, nil, &p, domain.ErrProductNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

func orderPath(orderID string) string {
	return "/api/orders/" + url.PathEscape(orderID)
}

// do sends one request through the breaker and decodes a 2xx body into out.
// notFound is the error a 404 maps to.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, notFound error) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.actor.UserID != "" {
			req.Header.Set(apihttp.HeaderUserID, c.actor.UserID)
		}
		if c.actor.IsAdmin {
			req.Header.Set(apihttp.HeaderUserRole, apihttp.RoleAdmin)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			return nil, &serverError{status: resp.StatusCode, body: readErrorBody(resp.Body)}
		}
		return resp, nil
	})
	if err != nil {
		c.logger.Warn("order api call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("%w: %s %s: %w", domain.ErrRemoteFailure, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s: %w", domain.ErrRemoteFailure, method, path, err)
		}
		return nil
	}

	eb := readErrorBody(resp.Body)
	return fmt.Errorf("%w: %s", sentinelFor(resp.StatusCode, eb.Code, notFound), eb.Error)
}

func readErrorBody(r io.Reader) errorBody {
	var eb errorBody
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return eb
	}
	if json.Unmarshal(data, &eb) != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(data))
	}
	return eb
}

// sentinelFor maps a 4xx answer back to the domain error the server raised.
func sentinelFor(status int, code string, notFound error) error {
	switch code {
	case apihttp.CodeValidation, apihttp.CodeInvalidRequest:
		return domain.ErrValidation
	case apihttp.CodePaymentDeclined:
		return domain.ErrPaymentDeclined
	case apihttp.CodeTransitionConflict:
		return domain.ErrTransitionConflict
	case apihttp.CodeForbidden, apihttp.CodeUnauthorized:
		return domain.ErrForbidden
	}

	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return domain.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusPaymentRequired:
		return domain.ErrPaymentDeclined
	case http.StatusNotFound:
		return notFound
	case http.StatusConflict:
		return domain.ErrTransitionConflict
	default:
		return domain.ErrRemoteFailure
	}
}
