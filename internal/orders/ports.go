package orders

import (
	"context"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
)

// Store runs fn inside one transaction. fn returning an error rolls the
// whole transaction back; the transaction resource is released either way.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the slice of the store the coordinator touches while holding a
// transaction. LockProduct and LockOrder take exclusive row locks that are
// held until commit or rollback.
type Tx interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	LockProduct(ctx context.Context, productID string) (*shop.Product, error)
	UpdateProductQuantity(ctx context.Context, productID string, quantity int) error
	InsertOrder(ctx context.Context, o *shop.Order) error
	InsertOrderItems(ctx context.Context, items []shop.OrderItem) error
	LockOrder(ctx context.Context, orderID string) (*shop.Order, error)
	OrderItems(ctx context.Context, orderID string) ([]shop.OrderItem, error)
	DeleteOrderItems(ctx context.Context, orderID string) error
	DeleteOrder(ctx context.Context, orderID string) error
}
