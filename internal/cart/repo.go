package cart

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo owns cart bookkeeping. None of it runs inside the order transaction;
// the checkout adapter sequences cart clearing strictly after the order
// commit.
type Repo struct{ DB *pgxpool.Pool }

// FindOrCreate returns the user's cart with items, creating an empty cart on
// first touch.
func (r *Repo) FindOrCreate(ctx context.Context, userID string) (*shop.Cart, error) {
	var c shop.Cart
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id=$1`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var one int
		if err := r.DB.QueryRow(ctx, `SELECT 1 FROM users WHERE id=$1`, userID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, shop.ErrUserNotFound
			}
			return nil, err
		}
		c = shop.Cart{ID: uuid.NewString(), UserID: userID}
		err = r.DB.QueryRow(ctx, `
			INSERT INTO carts(id, user_id) VALUES ($1,$2) RETURNING created_at, updated_at`,
			c.ID, c.UserID).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, cart_id, product_id, qty, unit_price_cents
		FROM cart_items WHERE cart_id=$1`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it shop.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Qty, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

// AddItem upserts a line: adding a product already in the cart bumps its
// quantity. The unit price snapshot is taken at first add.
func (r *Repo) AddItem(ctx context.Context, userID, productID string, qty int) (*shop.CartItem, error) {
	if qty <= 0 {
		return nil, &shop.InvalidQuantityError{ProductID: productID, Qty: qty}
	}
	c, err := r.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var price int64
	err = r.DB.QueryRow(ctx, `SELECT price_cents FROM products WHERE id=$1`, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shop.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, err
	}

	it := shop.CartItem{ID: uuid.NewString(), CartID: c.ID, ProductID: productID, Qty: qty, UnitPriceCents: price}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO cart_items(id, cart_id, product_id, qty, unit_price_cents)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty
		RETURNING id, qty, unit_price_cents`,
		it.ID, it.CartID, it.ProductID, it.Qty, it.UnitPriceCents).
		Scan(&it.ID, &it.Qty, &it.UnitPriceCents)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateItem sets a line's quantity, capped by what the catalog currently
// shows in stock. This is a convenience pre-check; placement re-validates
// under lock.
func (r *Repo) UpdateItem(ctx context.Context, userID, itemID string, qty int) (*shop.CartItem, error) {
	if qty <= 0 {
		return nil, &shop.InvalidQuantityError{Qty: qty}
	}
	var it shop.CartItem
	var name string
	var available int
	err := r.DB.QueryRow(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.unit_price_cents, p.name, p.quantity
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id=$1 AND c.user_id=$2`, itemID, userID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.UnitPriceCents, &name, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shop.ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if qty > available {
		return nil, &shop.InsufficientStockError{ProductID: it.ProductID, ProductName: name, Requested: qty, Available: available}
	}
	if _, err := r.DB.Exec(ctx, `UPDATE cart_items SET qty=$2 WHERE id=$1`, itemID, qty); err != nil {
		return nil, err
	}
	it.Qty = qty
	return &it, nil
}

func (r *Repo) RemoveItem(ctx context.Context, userID, itemID string) error {
	ct, err := r.DB.Exec(ctx, `
		DELETE FROM cart_items ci USING carts c
		WHERE ci.id=$1 AND ci.cart_id=c.id AND c.user_id=$2`, itemID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return shop.ErrCartItemNotFound
	}
	return nil
}

func (r *Repo) ClearItems(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, itemIDs)
	return err
}
