package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func seed(s *memStore) {
	s.users["u1"] = true
	s.products["p1"] = shop.Product{ID: "p1", Name: "keyboard", PriceCents: 1999, Quantity: 5}
	s.products["p2"] = shop.Product{ID: "p2", Name: "mouse", PriceCents: 899, Quantity: 2}
}

func newTestCoordinator(s *memStore) *Coordinator {
	return NewCoordinator(s, zerolog.Nop())
}

func TestPlaceOrderDeductsStockAndSnapshotsPrice(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	o, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "p1", Qty: 3}})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, shop.StatusPlaced, o.Status)
	assert.Equal(t, int64(3*1999), o.TotalCents)
	assert.Equal(t, int64(1999), o.Items[0].PriceCents)
	assert.Equal(t, 2, s.productQty("p1"))
	assert.True(t, s.orderExists(o.ID))

	// same request again: only 2 left
	_, err = c.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "p1", Qty: 3}})
	var ise *shop.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "keyboard", ise.ProductName)
	assert.Equal(t, 2, ise.Available)
	assert.Equal(t, 2, s.productQty("p1"), "failed placement must not touch stock")
}

func TestPlaceOrderMultiItemTotals(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	o, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{
		{ProductID: "p2", Qty: 1},
		{ProductID: "p1", Qty: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(899+2*1999), o.TotalCents)
	// items keep request order even though locks are taken sorted
	assert.Equal(t, "p2", o.Items[0].ProductID)
	assert.Equal(t, "p1", o.Items[1].ProductID)
	assert.Equal(t, 3, s.productQty("p1"))
	assert.Equal(t, 1, s.productQty("p2"))
}

func TestPlaceOrderPartialFailureRollsBackEverything(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	// first line would succeed, second is short by one
	_, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{
		{ProductID: "p1", Qty: 1},
		{ProductID: "p2", Qty: 3},
	})
	var ise *shop.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "mouse", ise.ProductName)
	assert.Equal(t, 2, ise.Available)

	assert.Equal(t, 5, s.productQty("p1"), "earlier line's deduction must not persist")
	assert.Equal(t, 2, s.productQty("p2"))
	assert.Equal(t, 0, s.orderCount())
}

func TestPlaceOrderDuplicateLines(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	// 2+2 against stock 2: second line sees what the first left behind
	_, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{
		{ProductID: "p2", Qty: 2},
		{ProductID: "p2", Qty: 2},
	})
	var ise *shop.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 0, ise.Available)
	assert.Equal(t, 2, s.productQty("p2"))
}

func TestPlaceOrderValidation(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	_, err := c.PlaceOrder(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, shop.ErrNoItems)

	_, err = c.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "p1", Qty: 0}})
	var iqe *shop.InvalidQuantityError
	assert.ErrorAs(t, err, &iqe)

	_, err = c.PlaceOrder(context.Background(), "nobody", []shop.LineItem{{ProductID: "p1", Qty: 1}})
	assert.ErrorIs(t, err, shop.ErrUserNotFound)

	_, err = c.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "ghost", Qty: 1}})
	var pnf *shop.ProductNotFoundError
	assert.ErrorAs(t, err, &pnf)
	assert.Equal(t, 5, s.productQty("p1"))
}

func TestPlaceOrderStoreFailureRollsBack(t *testing.T) {
	s := newMemStore()
	seed(s)
	s.failInsertOrder = errors.New("constraint violation")
	c := newTestCoordinator(s)

	_, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "p1", Qty: 1}})
	require.Error(t, err)
	assert.Equal(t, 5, s.productQty("p1"))
	assert.Equal(t, 0, s.orderCount())
}

func TestPlaceOrderCancelledContext(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.PlaceOrder(ctx, "u1", []shop.LineItem{{ProductID: "p1", Qty: 1}})
	require.Error(t, err)
	assert.Equal(t, 5, s.productQty("p1"))
}

func TestCancelOrderRoundTrip(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	o, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{
		{ProductID: "p1", Qty: 3},
		{ProductID: "p2", Qty: 1},
	})
	require.NoError(t, err)
	require.Equal(t, 2, s.productQty("p1"))
	require.Equal(t, 1, s.productQty("p2"))

	cancelled, err := c.CancelOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", cancelled.UserID)
	assert.Len(t, cancelled.Items, 2)

	assert.Equal(t, 5, s.productQty("p1"), "cancel restores stock exactly")
	assert.Equal(t, 2, s.productQty("p2"))
	assert.False(t, s.orderExists(o.ID))
}

func TestCancelOrderTwice(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	o, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "p1", Qty: 2}})
	require.NoError(t, err)

	_, err = c.CancelOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, 5, s.productQty("p1"))

	_, err = c.CancelOrder(context.Background(), o.ID)
	assert.ErrorIs(t, err, shop.ErrOrderNotFound)
	assert.Equal(t, 5, s.productQty("p1"), "second cancel must not restore again")
}

func TestCancelUnknownOrder(t *testing.T) {
	s := newMemStore()
	seed(s)
	c := newTestCoordinator(s)

	_, err := c.CancelOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, shop.ErrOrderNotFound)
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	s := newMemStore()
	s.users["u1"] = true
	s.products["p1"] = shop.Product{ID: "p1", Name: "gpu", PriceCents: 49999, Quantity: 5}
	c := newTestCoordinator(s)

	var g errgroup.Group
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := c.PlaceOrder(context.Background(), "u1", []shop.LineItem{{ProductID: "p1", Qty: 1}})
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var ok, short int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		var ise *shop.InsufficientStockError
		require.ErrorAs(t, err, &ise)
		short++
	}
	assert.Equal(t, 5, ok, "exactly as many orders as units")
	assert.Equal(t, 15, short)
	assert.Equal(t, 0, s.productQty("p1"))
	assert.Equal(t, 5, s.orderCount())
}

func TestConcurrentRaceForLastUnit(t *testing.T) {
	s := newMemStore()
	s.users["u1"] = true
	s.users["u2"] = true
	s.products["p1"] = shop.Product{ID: "p1", Name: "console", PriceCents: 39999, Quantity: 1}
	c := newTestCoordinator(s)

	errs := make(chan error, 2)
	var g errgroup.Group
	for _, uid := range []string{"u1", "u2"} {
		uid := uid
		g.Go(func() error {
			_, err := c.PlaceOrder(context.Background(), uid, []shop.LineItem{{ProductID: "p1", Qty: 1}})
			errs <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(errs)

	var ok, short int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			var ise *shop.InsufficientStockError
			require.ErrorAs(t, err, &ise)
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, s.productQty("p1"))
}
