package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

// SessionCartCache keeps a shopper's cart for the lifetime of one session.
type SessionCartCache interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Set(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
