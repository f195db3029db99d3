package orders

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Coordinator owns the two stock-mutating flows: placement (lock, validate,
// deduct, persist order+items, commit) and cancellation (restore, delete,
// commit). Nothing else in the service writes product quantities.
type Coordinator struct {
	store Store
	log   zerolog.Logger
}

func NewCoordinator(store Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{store: store, log: log.With().Str("component", "coordinator").Logger()}
}

// PlaceOrder converts items into a persisted order, deducting stock for every
// line inside a single transaction. Any failure leaves stock and orders
// exactly as they were before the call.
//
// Product rows are locked in sorted id order regardless of request order, so
// two concurrent requests over overlapping product sets cannot deadlock.
func (c *Coordinator) PlaceOrder(ctx context.Context, userID string, items []shop.LineItem) (*shop.Order, error) {
	if len(items) == 0 {
		return nil, shop.ErrNoItems
	}
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, &shop.InvalidQuantityError{ProductID: it.ProductID, Qty: it.Qty}
		}
	}

	var placed *shop.Order
	err := c.store.InTx(ctx, func(tx Tx) error {
		ok, err := tx.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return shop.ErrUserNotFound
		}

		locked := make(map[string]*shop.Product, len(items))
		for _, id := range sortedProductIDs(items) {
			p, err := tx.LockProduct(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = p
		}

		// Validate and deduct in request order against the locked rows.
		// A shortfall anywhere aborts the transaction; deductions made for
		// earlier lines never reach the store.
		now := time.Now().UTC()
		order := &shop.Order{
			ID:        uuid.NewString(),
			UserID:    userID,
			Status:    shop.StatusPlaced,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, it := range items {
			p := locked[it.ProductID]
			if p.Quantity < it.Qty {
				return &shop.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   it.Qty,
					Available:   p.Quantity,
				}
			}
			p.Quantity -= it.Qty
			order.Items = append(order.Items, shop.OrderItem{
				ID:         uuid.NewString(),
				OrderID:    order.ID,
				ProductID:  p.ID,
				Qty:        it.Qty,
				PriceCents: p.PriceCents,
			})
			order.TotalCents += p.PriceCents * int64(it.Qty)
		}

		for _, id := range sortedKeys(locked) {
			if err := tx.UpdateProductQuantity(ctx, id, locked[id].Quantity); err != nil {
				return err
			}
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, order.Items); err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("order_id", placed.ID).Str("user_id", userID).
		Int64("total_cents", placed.TotalCents).Int("items", len(placed.Items)).
		Msg("order placed")
	return placed, nil
}

// CancelOrder is the exact inverse of placement: restore every item's
// quantity, delete the items, delete the order, all in one transaction.
// The order row is locked first, so a second cancel of the same id finds
// no row and fails with ErrOrderNotFound instead of restoring stock twice.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID string) (*shop.Order, error) {
	var cancelled *shop.Order
	err := c.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		o.Items = items

		restore := make(map[string]int, len(items))
		for _, it := range items {
			restore[it.ProductID] += it.Qty
		}
		for _, id := range sortedKeys(restore) {
			p, err := tx.LockProduct(ctx, id)
			if err != nil {
				return err
			}
			if err := tx.UpdateProductQuantity(ctx, id, p.Quantity+restore[id]); err != nil {
				return err
			}
		}

		if err := tx.DeleteOrderItems(ctx, orderID); err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, orderID); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("order_id", orderID).Str("user_id", cancelled.UserID).Msg("order cancelled, stock restored")
	return cancelled, nil
}

func sortedProductIDs(items []shop.LineItem) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
