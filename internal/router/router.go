package router

import (
	"encoding/json"
	"net/http"

	"buydeals/internal/handler"
	"buydeals/internal/middleware"
	"buydeals/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Deals    *handler.DealHandler
	Payments *handler.PaymentHandler
	Webhooks *handler.WebhookHandler
	Checkout *handler.CheckoutHandler
}

// New creates a new HTTP router with all routes and middleware configured.
// Initiation and webhook routes are only registered for the given providers.
func New(h Handlers, providers []string, jwtSecret string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> Logging -> CORS
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "not found", Code: model.ErrCodeNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, model.ErrorResponse{Error: "method not allowed", Code: model.ErrCodeInvalidRequest})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/deals", h.Deals.List)
		r.Get("/deals/{id}", h.Deals.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(jwtSecret, logger))

			r.Post("/checkout/quote", h.Checkout.Quote)
			r.Post("/checkout", h.Checkout.Checkout)
			r.Get("/payment-orders/{orderId}", h.Payments.GetOrder)
		})
	})

	// Provider callbacks carry no session; they are verified by the provider adapter.
	r.Route("/functions/v1", func(r chi.Router) {
		for _, name := range providers {
			r.With(middleware.BearerAuth(jwtSecret, logger)).
				Post("/"+name+"-initiate-payment", h.Checkout.InitiatePayment(name))
			r.Post("/"+name+"-webhook", h.Webhooks.Notify(name))
			r.Get("/"+name+"-webhook", h.Webhooks.VerificationKey(name))
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
