package handler

import (
	"net/http"

	"buydeals/internal/model"
	"buydeals/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CheckoutHandler handles pricing and payment initiation.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Quote handles POST /api/checkout/quote.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	uid, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	quote, err := h.service.Quote(r.Context(), uid, req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Checkout handles POST /api/checkout.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	uid, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Checkout(r.Context(), uid, req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// InitiatePayment returns the handler for
// POST /functions/v1/{provider}-initiate-payment.
func (h *CheckoutHandler) InitiatePayment(providerName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			writeError(w, err, h.logger)
			return
		}

		var req model.InitiatePaymentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err, h.logger)
			return
		}

		resp, err := h.service.InitiatePayment(r.Context(), providerName, uid, &req)
		if err != nil {
			writeError(w, err, h.logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *CheckoutHandler) decode(w http.ResponseWriter, r *http.Request) (uuid.UUID, *model.CheckoutRequest, bool) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err, h.logger)
		return uuid.Nil, nil, false
	}

	req := &model.CheckoutRequest{}
	if err := decodeJSON(w, r, req); err != nil {
		writeError(w, err, h.logger)
		return uuid.Nil, nil, false
	}
	return uid, req, true
}
