package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCarts struct {
	cart    *shop.Cart
	cleared []string
}

func (f *fakeCarts) FindOrCreate(context.Context, string) (*shop.Cart, error) {
	return f.cart, nil
}

func (f *fakeCarts) ClearItems(_ context.Context, ids []string) error {
	f.cleared = append(f.cleared, ids...)
	var keep []shop.CartItem
	for _, it := range f.cart.Items {
		drop := false
		for _, id := range ids {
			if it.ID == id {
				drop = true
			}
		}
		if !drop {
			keep = append(keep, it)
		}
	}
	f.cart.Items = keep
	return nil
}

type fakePlacer struct {
	placed map[string]*shop.Order
	err    error
	calls  int
}

func (f *fakePlacer) PlaceOrder(_ context.Context, userID string, items []shop.LineItem) (*shop.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	o := &shop.Order{ID: "o1", UserID: userID, Status: shop.StatusPlaced}
	for _, it := range items {
		o.Items = append(o.Items, shop.OrderItem{OrderID: o.ID, ProductID: it.ProductID, Qty: it.Qty})
	}
	if f.placed == nil {
		f.placed = map[string]*shop.Order{}
	}
	f.placed[o.ID] = o
	return o, nil
}

func (f *fakePlacer) GetOrder(_ context.Context, orderID string) (*shop.Order, error) {
	o, ok := f.placed[orderID]
	if !ok {
		return nil, shop.ErrOrderNotFound
	}
	return o, nil
}

type fakeTokens struct{ m map[string]string }

func (f *fakeTokens) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.m[key]
	return v, ok, nil
}

func (f *fakeTokens) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.m[key] = value
	return nil
}

func newService(c *shop.Cart) (*Service, *fakeCarts, *fakePlacer, *fakeTokens) {
	carts := &fakeCarts{cart: c}
	placer := &fakePlacer{}
	tokens := &fakeTokens{m: map[string]string{}}
	svc := &Service{Carts: carts, Orders: placer, Reader: placer, Tokens: tokens, Log: zerolog.Nop()}
	return svc, carts, placer, tokens
}

func cartWithItems() *shop.Cart {
	return &shop.Cart{
		ID: "c1", UserID: "u1",
		Items: []shop.CartItem{
			{ID: "ci1", CartID: "c1", ProductID: "p1", Qty: 2},
			{ID: "ci2", CartID: "c1", ProductID: "p2", Qty: 1},
		},
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, _, placer, _ := newService(&shop.Cart{ID: "c1", UserID: "u1"})
	_, err := svc.Checkout(context.Background(), "u1", "")
	assert.ErrorIs(t, err, shop.ErrEmptyCart)
	assert.Zero(t, placer.calls, "no order attempted for an empty cart")
}

func TestCheckoutPlacesOrderThenClearsCart(t *testing.T) {
	svc, carts, _, _ := newService(cartWithItems())

	o, err := svc.Checkout(context.Background(), "u1", "tok-1")
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "p1", o.Items[0].ProductID)
	assert.Equal(t, 2, o.Items[0].Qty)
	assert.ElementsMatch(t, []string{"ci1", "ci2"}, carts.cleared)
	assert.Empty(t, carts.cart.Items)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	svc, carts, placer, _ := newService(cartWithItems())
	placer.err = &shop.InsufficientStockError{ProductName: "p1", Requested: 2, Available: 1}

	_, err := svc.Checkout(context.Background(), "u1", "tok-1")
	var ise *shop.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Empty(t, carts.cleared, "cart must survive a failed placement")
	assert.Len(t, carts.cart.Items, 2)
}

func TestCheckoutReplaysToken(t *testing.T) {
	svc, _, placer, _ := newService(cartWithItems())

	first, err := svc.Checkout(context.Background(), "u1", "tok-1")
	require.NoError(t, err)
	require.Equal(t, 1, placer.calls)

	// same token again: no second placement, same order back
	second, err := svc.Checkout(context.Background(), "u1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, placer.calls, "replay must not place a second order")
}

func TestCheckoutReplaySweepsStaleCart(t *testing.T) {
	// simulate a crash between order commit and cart clear: token recorded,
	// cart still holds the items
	svc, carts, placer, tokens := newService(cartWithItems())
	_, err := placer.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "p1", Qty: 2}})
	require.NoError(t, err)
	tokens.m["idem:checkout:u1:tok-9"] = "o1"

	o, err := svc.Checkout(context.Background(), "u1", "tok-9")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, 1, placer.calls, "no re-placement on recovery")
	assert.Empty(t, carts.cart.Items, "stale cart swept on replay")
}

func TestCheckoutTokenForCancelledOrderPlacesFresh(t *testing.T) {
	// the order recorded under the token was cancelled afterwards; the token
	// must not block the user until it expires
	svc, carts, placer, tokens := newService(cartWithItems())
	tokens.m["idem:checkout:u1:tok-1"] = "o-cancelled"

	o, err := svc.Checkout(context.Background(), "u1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 1, placer.calls, "fresh placement, not an error")
	assert.Equal(t, o.ID, tokens.m["idem:checkout:u1:tok-1"], "token rebound to the new order")
	assert.Empty(t, carts.cart.Items)
}

func TestCheckoutWithoutToken(t *testing.T) {
	svc, carts, placer, tokens := newService(cartWithItems())

	_, err := svc.Checkout(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, placer.calls)
	assert.Empty(t, tokens.m)
	assert.Empty(t, carts.cart.Items)
}

func TestCheckoutPropagatesUnknownErrors(t *testing.T) {
	svc, _, placer, _ := newService(cartWithItems())
	placer.err = errors.New("connection reset")
	_, err := svc.Checkout(context.Background(), "u1", "tok-1")
	require.Error(t, err)
}
