package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
)

// memStore gives the coordinator transactional semantics without postgres:
// one mutex serializes transactions, every tx works on a staged copy, and
// only a nil error from fn publishes the staged state back. A failed fn
// leaves the committed maps untouched, which is exactly the rollback
// contract the pg store provides.
type memStore struct {
	mu       sync.Mutex
	users    map[string]bool
	products map[string]shop.Product
	orders   map[string]shop.Order
	items    map[string][]shop.OrderItem

	failInsertOrder error // fault injection
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]bool{},
		products: map[string]shop.Product{},
		orders:   map[string]shop.Order{},
		items:    map[string][]shop.OrderItem{},
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:    s,
		products: map[string]shop.Product{},
		orders:   map[string]shop.Order{},
		items:    map[string][]shop.OrderItem{},
	}
	for k, v := range s.products {
		tx.products[k] = v
	}
	for k, v := range s.orders {
		tx.orders[k] = v
	}
	for k, v := range s.items {
		tx.items[k] = append([]shop.OrderItem(nil), v...)
	}

	if err := fn(tx); err != nil {
		return err
	}
	s.products = tx.products
	s.orders = tx.orders
	s.items = tx.items
	return nil
}

func (s *memStore) productQty(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Quantity
}

func (s *memStore) orderExists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orders[id]
	return ok
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type memTx struct {
	store    *memStore
	products map[string]shop.Product
	orders   map[string]shop.Order
	items    map[string][]shop.OrderItem
}

func (t *memTx) UserExists(_ context.Context, userID string) (bool, error) {
	return t.store.users[userID], nil
}

func (t *memTx) LockProduct(_ context.Context, productID string) (*shop.Product, error) {
	p, ok := t.products[productID]
	if !ok {
		return nil, &shop.ProductNotFoundError{ProductID: productID}
	}
	return &p, nil
}

func (t *memTx) UpdateProductQuantity(_ context.Context, productID string, quantity int) error {
	p, ok := t.products[productID]
	if !ok {
		return errors.New("no such product")
	}
	p.Quantity = quantity
	t.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *shop.Order) error {
	if t.store.failInsertOrder != nil {
		return t.store.failInsertOrder
	}
	cp := *o
	cp.Items = nil
	t.orders[o.ID] = cp
	return nil
}

func (t *memTx) InsertOrderItems(_ context.Context, items []shop.OrderItem) error {
	for _, it := range items {
		t.items[it.OrderID] = append(t.items[it.OrderID], it)
	}
	return nil
}

func (t *memTx) LockOrder(_ context.Context, orderID string) (*shop.Order, error) {
	o, ok := t.orders[orderID]
	if !ok {
		return nil, shop.ErrOrderNotFound
	}
	return &o, nil
}

func (t *memTx) OrderItems(_ context.Context, orderID string) ([]shop.OrderItem, error) {
	return append([]shop.OrderItem(nil), t.items[orderID]...), nil
}

func (t *memTx) DeleteOrderItems(_ context.Context, orderID string) error {
	delete(t.items, orderID)
	return nil
}

func (t *memTx) DeleteOrder(_ context.Context, orderID string) error {
	delete(t.orders, orderID)
	return nil
}
