package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
	"go.uber.org/zap"
)

const persistTimeout = time.Second

// ProductSource resolves catalog data for a product added to the cart.
type ProductSource interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// Persister keeps a copy of the cart outside the process for one session.
type Persister interface {
	Set(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithSession mirrors every mutation into p under sessionID.
func WithSession(sessionID string, p Persister) Option {
	return func(s *Store) {
		s.sessionID = sessionID
		s.persister = p
	}
}

// WithCart seeds the store, e.g. with a cart restored from the session cache.
func WithCart(c domain.Cart) Option {
	return func(s *Store) {
		s.cart = c.Clone()
	}
}

// Store is the single source of truth for the shopper's in-progress cart.
// All mutations are serialized; readers always get copies.
type Store struct {
	mu   sync.Mutex
	cart domain.Cart

	calc     *pricing.Calculator
	products ProductSource
	logger   *zap.Logger

	sessionID string
	persister Persister

	subMu       sync.Mutex
	subscribers map[int]func(domain.Cart)
	nextSubID   int
}

func NewStore(calc *pricing.Calculator, products ProductSource, opts ...Option) *Store {
	s := &Store{
		calc:        calc,
		products:    products,
		logger:      zap.NewNop(),
		subscribers: make(map[int]func(domain.Cart)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddOrUpdateItem sets the quantity of productID. A quantity of zero or less
// removes the line; an existing line gets its quantity replaced.
func (s *Store) AddOrUpdateItem(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	if productID == "" {
		return s.Cart(), fmt.Errorf("%w: product id is required", domain.ErrValidation)
	}
	if quantity <= 0 {
		s.RemoveItem(productID)
		return s.Cart(), nil
	}

	s.mu.Lock()
	if idx := s.cart.IndexOf(productID); idx >= 0 {
		s.cart.Items[idx].Quantity = quantity
		snapshot := s.commitLocked()
		s.mu.Unlock()
		s.notify(snapshot)
		return snapshot, nil
	}
	s.mu.Unlock()

	// catalog lookup happens outside the lock
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return s.Cart(), fmt.Errorf("resolve product %s: %w", productID, err)
	}
	if product.Price.IsNegative() {
		return s.Cart(), fmt.Errorf("%w: product %s has a negative price", domain.ErrValidation, productID)
	}

	s.mu.Lock()
	if idx := s.cart.IndexOf(productID); idx >= 0 {
		s.cart.Items[idx].Quantity = quantity
	} else {
		s.cart.Items = append(s.cart.Items, domain.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Price:     product.Price,
			Quantity:  quantity,
		})
	}
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot, nil
}

func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	idx := s.cart.IndexOf(productID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.cart.Items = append(s.cart.Items[:idx:idx], s.cart.Items[idx+1:]...)
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.notify(snapshot)
}

// SetShippingAddress accepts only a complete address. On rejection the
// previous address is kept.
func (s *Store) SetShippingAddress(addr domain.ShippingAddress) error {
	normalized := addr.Normalize()
	if !normalized.IsComplete() {
		return fmt.Errorf("%w: address, city, postal code and country are all required", domain.ErrValidation)
	}

	s.mu.Lock()
	s.cart.ShippingAddress = &normalized
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

func (s *Store) SetPaymentMethod(method domain.PaymentMethod) error {
	if !method.IsSupported() {
		return fmt.Errorf("%w: unsupported payment method %q", domain.ErrValidation, method)
	}

	s.mu.Lock()
	s.cart.PaymentMethod = method
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// Clear empties items, address and payment method and drops the session copy.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cart = domain.Cart{}
	if s.persister != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := s.persister.Delete(ctx, s.sessionID); err != nil {
			s.logger.Warn("session cart delete failed", zap.String("session_id", s.sessionID), zap.Error(err))
		}
		cancel()
	}
	snapshot := s.cart.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Prices is recomputed from the current items on every call.
func (s *Store) Prices() domain.PriceBreakdown {
	s.mu.Lock()
	items := s.cart.Clone().Items
	s.mu.Unlock()
	return s.calc.Derive(items)
}

// Subscribe registers fn to receive a copy of the cart after every mutation.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(domain.Cart)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// commitLocked persists the cart and returns a snapshot. Caller holds s.mu.
func (s *Store) commitLocked() domain.Cart {
	snapshot := s.cart.Clone()
	if s.persister == nil {
		return snapshot
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Set(ctx, s.sessionID, &snapshot); err != nil {
		// the in-memory cart stays authoritative
		s.logger.Warn("session cart persist failed", zap.String("session_id", s.sessionID), zap.Error(err))
	}
	return snapshot.Clone()
}

func (s *Store) notify(snapshot domain.Cart) {
	s.subMu.Lock()
	fns := make([]func(domain.Cart), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot.Clone())
	}
}
