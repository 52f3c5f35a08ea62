package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"buydeals/internal/model"
	"buydeals/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DealHandler handles deal browsing requests.
type DealHandler struct {
	service service.DealService
	logger  zerolog.Logger
}

// NewDealHandler creates a new deal handler.
func NewDealHandler(service service.DealService, logger zerolog.Logger) *DealHandler {
	return &DealHandler{
		service: service,
		logger:  logger.With().Str("handler", "deal").Logger(),
	}
}

// List handles GET /api/deals requests with pagination.
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	deals, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, deals)
}

// GetByID handles GET /api/deals/{id} requests.
func (h *DealHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid deal id", model.ErrInvalidRequest), h.logger)
		return
	}

	deal, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s parameter", model.ErrInvalidRequest, name)
	}
	return v, nil
}
