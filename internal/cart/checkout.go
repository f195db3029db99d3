package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-backend/internal/redisx"
	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/rs/zerolog"
)

type Carts interface {
	FindOrCreate(ctx context.Context, userID string) (*shop.Cart, error)
	ClearItems(ctx context.Context, itemIDs []string) error
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID string, items []shop.LineItem) (*shop.Order, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*shop.Order, error)
}

type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service turns the user's cart into an order. The order transaction and the
// cart clear are separate operations; the clear runs strictly after the
// coordinator reports a committed order, and an idempotency token bridges a
// crash between the two.
type Service struct {
	Carts  Carts
	Orders OrderPlacer
	Reader OrderReader
	Tokens TokenStore
	Log    zerolog.Logger
}

// Checkout places an order from the cart. token may be empty; with a token,
// retrying the same checkout returns the already-placed order instead of
// charging again, and clears any cart items a crash left behind.
func (s *Service) Checkout(ctx context.Context, userID, token string) (*shop.Order, error) {
	var idemKey string
	if token != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemCheckout, userID, token)
		if orderID, ok, err := s.Tokens.Get(ctx, idemKey); err == nil && ok {
			order, err := s.replay(ctx, userID, orderID)
			if err == nil {
				return order, nil
			}
			if !errors.Is(err, shop.ErrOrderNotFound) {
				return nil, err
			}
			// The recorded order was cancelled since; place a fresh one.
		}
	}

	c, err := s.Carts.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, shop.ErrEmptyCart
	}

	items := make([]shop.LineItem, 0, len(c.Items))
	itemIDs := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, shop.LineItem{ProductID: it.ProductID, Qty: it.Qty})
		itemIDs = append(itemIDs, it.ID)
	}

	// Any failure here means no order exists and the cart must stay intact.
	order, err := s.Orders.PlaceOrder(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	if idemKey != "" {
		if err := s.Tokens.Set(ctx, idemKey, order.ID, redisx.TTLIdempotency); err != nil {
			s.Log.Warn().Err(err).Str("order_id", order.ID).Msg("record checkout token")
		}
	}

	// Clear only after the order committed. If this fails the order stands;
	// the stale cart is recovered on the next checkout with the same token.
	if err := s.Carts.ClearItems(ctx, itemIDs); err != nil {
		s.Log.Error().Err(err).Str("order_id", order.ID).Msg("clear cart after checkout")
	}
	return order, nil
}

// replay handles a token seen before: the order was already placed, so fetch
// it and sweep whatever the interrupted attempt left in the cart.
func (s *Service) replay(ctx context.Context, userID, orderID string) (*shop.Order, error) {
	order, err := s.Reader.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	c, err := s.Carts.FindOrCreate(ctx, userID)
	if err != nil {
		return order, nil
	}
	if len(c.Items) > 0 {
		ids := make([]string, 0, len(c.Items))
		for _, it := range c.Items {
			ids = append(ids, it.ID)
		}
		if err := s.Carts.ClearItems(ctx, ids); err != nil {
			s.Log.Warn().Err(err).Str("order_id", orderID).Msg("sweep stale cart")
		}
	}
	s.Log.Info().Str("order_id", orderID).Str("user_id", userID).Msg("checkout replayed from token")
	return order, nil
}
