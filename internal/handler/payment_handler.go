package handler

import (
	"net/http"

	"buydeals/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PaymentHandler serves payment order status.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// GetOrder handles GET /api/payment-orders/{orderId}. Clients poll it after
// the provider redirect because only the webhook settles an order.
func (h *PaymentHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	order, err := h.service.GetOrder(r.Context(), uid, chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
