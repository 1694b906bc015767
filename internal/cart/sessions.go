package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Sessions hands out one Store per shopping session, restored from the
// session cache when the shopper comes back within its TTL.
type Sessions struct {
	cache    cache.SessionCartCache
	calc     *pricing.Calculator
	products ProductSource
	logger   *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede

	mu     sync.Mutex
	stores map[string]*Store
}

func NewSessions(c cache.SessionCartCache, calc *pricing.Calculator, products ProductSource, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		cache:    c,
		calc:     calc,
		products: products,
		logger:   logger,
		stores:   make(map[string]*Store),
	}
}

func (s *Sessions) Open(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if store := s.lookup(sessionID); store != nil {
		return store, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if store := s.lookup(sessionID); store != nil {
			return store, nil
		}

		restored := domain.Cart{}
		cached, err := s.cache.Get(ctx, sessionID)
		switch {
		case err == nil:
			restored = *cached
		case errors.Is(err, cache.ErrCacheMiss):
		default:
			// a broken cache only costs the shopper their previous cart
			s.logger.Warn("session cart restore failed", zap.String("session_id", sessionID), zap.Error(err))
		}

		store := NewStore(s.calc, s.products,
			WithLogger(s.logger.With(zap.String("session_id", sessionID))),
			WithSession(sessionID, s.cache),
			WithCart(restored),
		)

		s.mu.Lock()
		s.stores[sessionID] = store
		s.mu.Unlock()
		return store, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Store), nil
}

// Close forgets the in-process store. The cached copy expires with its TTL.
func (s *Sessions) Close(sessionID string) {
	s.mu.Lock()
	delete(s.stores, sessionID)
	s.mu.Unlock()
}

func (s *Sessions) lookup(sessionID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[sessionID]
}
