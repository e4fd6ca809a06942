// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/pos-session-service/internal/obs"
	"github.com/fairyhunter13/pos-session-service/internal/payment"
	"github.com/fairyhunter13/pos-session-service/internal/pos"
	"github.com/fairyhunter13/pos-session-service/internal/session"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// writeDomainError maps session and POS errors onto HTTP responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, session.ErrNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, session.ErrClosed):
		status, code = http.StatusGone, "session_closed"
	case errors.Is(err, session.ErrTransactionNotFound):
		status, code = http.StatusNotFound, "transaction_not_found"
	case errors.Is(err, payment.ErrNoPaymentURL):
		status, code = http.StatusNotFound, "no_payment_url"
	case errors.Is(err, pos.ErrProductNotFound):
		status, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, pos.ErrLineNotFound):
		status, code = http.StatusNotFound, "not_in_cart"
	case errors.Is(err, pos.ErrOutOfStock):
		status, code = http.StatusConflict, "out_of_stock"
	case errors.Is(err, pos.ErrEmptyCart):
		status, code = http.StatusConflict, "empty_cart"
	case errors.Is(err, session.ErrCartChanged):
		status, code = http.StatusConflict, "cart_changed"
	case errors.Is(err, session.ErrCheckoutInProgress):
		status, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, pos.ErrInsufficientTender):
		status, code = http.StatusUnprocessableEntity, "insufficient_tender"
	case errors.Is(err, pos.ErrInvalidPaymentMethod):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusRequestTimeout, "checkout_cancelled"
	}
	if status == http.StatusInternalServerError {
		obs.L(r.Context()).Error("request_failed", "path", r.URL.Path, "error", err)
	}
	WriteJSONError(w, status, code, err.Error())
}
