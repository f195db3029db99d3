package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-shop-backend/internal/shop"
	"github.com/ariefcatur/go-shop-backend/internal/users"
)

// errorBody carries a machine-readable code so clients can branch without
// parsing the message.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
	Product   string `json:"product,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps the domain error taxonomy onto HTTP. Anything unrecognized
// is a store-level failure and stays opaque to the client.
func WriteError(w http.ResponseWriter, err error) {
	var (
		pnf *shop.ProductNotFoundError
		ise *shop.InsufficientStockError
		iqe *shop.InvalidQuantityError
		ite *shop.InvalidTransitionError
	)
	switch {
	case errors.Is(err, shop.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Code: "user_not_found", Message: err.Error()})
	case errors.Is(err, shop.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Code: "order_not_found", Message: err.Error()})
	case errors.Is(err, shop.ErrCartItemNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Code: "cart_item_not_found", Message: err.Error()})
	case errors.As(err, &pnf):
		writeJSON(w, http.StatusNotFound, errorBody{Code: "product_not_found", Message: err.Error(), ProductID: pnf.ProductID})
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, errorBody{
			Code: "insufficient_stock", Message: err.Error(),
			ProductID: ise.ProductID, Product: ise.ProductName, Available: &ise.Available,
		})
	case errors.Is(err, shop.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "empty_cart", Message: err.Error()})
	case errors.Is(err, shop.ErrNoItems):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "no_items", Message: err.Error()})
	case errors.As(err, &iqe):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_quantity", Message: err.Error(), ProductID: iqe.ProductID})
	case errors.As(err, &ite):
		writeJSON(w, http.StatusConflict, errorBody{Code: "invalid_transition", Message: err.Error()})
	case errors.Is(err, users.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorBody{Code: "email_taken", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "transaction_failed", Message: "internal error"})
	}
}
