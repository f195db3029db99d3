package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type CartRepo interface {
	FindOrCreate(ctx context.Context, userID string) (*shop.Cart, error)
	AddItem(ctx context.Context, userID, productID string, qty int) (*shop.CartItem, error)
	UpdateItem(ctx context.Context, userID, itemID string, qty int) (*shop.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
}

type CheckoutService interface {
	Checkout(ctx context.Context, userID, token string) (*shop.Order, error)
}

type CartHandler struct {
	Repo     CartRepo
	Checkout CheckoutService
	Log      zerolog.Logger
}

type AddCartItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type UpdateCartItemReq struct {
	Qty int `json:"qty"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart/{userID}", h.getCart)
	r.Post("/cart/{userID}/items", h.addItem)
	r.Patch("/cart/{userID}/items/{itemID}", h.updateItem)
	r.Delete("/cart/{userID}/items/{itemID}", h.removeItem)
	r.Post("/cart/{userID}/checkout", h.checkout)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Repo.FindOrCreate(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Message: "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "missing_fields", Message: "product_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Repo.AddItem(ctx, chi.URLParam(r, "userID"), req.ProductID, req.Qty)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Message: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Repo.UpdateItem(ctx, chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"), req.Qty)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.RemoveItem(ctx, chi.URLParam(r, "userID"), chi.URLParam(r, "itemID")); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *CartHandler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	token := r.Header.Get("X-Idempotency-Key")
	order, err := h.Checkout.Checkout(ctx, chi.URLParam(r, "userID"), token)
	if err != nil {
		checkouts.WithLabelValues("failure").Inc()
		WriteError(w, err)
		return
	}
	checkouts.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusCreated, order)
}
