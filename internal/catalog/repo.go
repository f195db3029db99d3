package catalog

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the catalog read/management path. It never locks product rows;
// quantity observed here may lag a concurrent placement by design.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) List(ctx context.Context) ([]shop.Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, price_cents, quantity, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (*shop.Product, error) {
	var p shop.Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, price_cents, quantity, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shop.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Create(ctx context.Context, name, description string, priceCents int64, quantity int) (*shop.Product, error) {
	p := shop.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		PriceCents:  priceCents,
		Quantity:    quantity,
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, price_cents, quantity)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.PriceCents, p.Quantity).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
