package users

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEmailTaken = errors.New("email already registered")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, name, email, password string) (*shop.User, error) {
	var one int
	err := r.DB.QueryRow(ctx, `SELECT 1 FROM users WHERE email=$1`, email).Scan(&one)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := shop.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: hash}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO users(id, name, email, password_hash)
		VALUES ($1,$2,$3,$4) RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if uniqueViolation(err) {
		// lost the race with a concurrent registration; the constraint on
		// users.email is the authoritative check
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repo) FindByID(ctx context.Context, id string) (*shop.User, error) {
	var u shop.User
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shop.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
