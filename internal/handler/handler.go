package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"buydeals/internal/middleware"
	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies read by the handlers.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err onto an HTTP status and a model.ErrorResponse body.
// Domain errors expose their code and message; anything else is reported
// as an internal error without details.
func writeError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	de, ok := model.AsDomainError(err)
	if !ok {
		logger.Error().Err(err).Msg("handler error")
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
			Error: "internal server error",
			Code:  model.ErrCodeInternalError,
		})
		return
	}

	status := statusFor(de.Code)
	logger.Warn().Err(err).Str("code", de.Code).Int("status", status).Msg("request rejected")
	writeJSON(w, status, model.ErrorResponse{
		Error:   de.Message,
		Code:    de.Code,
		Message: err.Error(),
	})
}

func statusFor(code string) int {
	switch code {
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeEmptyCart, model.ErrCodeUnsupportedCurrency:
		return http.StatusBadRequest
	case model.ErrCodeNotFound, model.ErrCodeUnknownProvider:
		return http.StatusNotFound
	case model.ErrCodeOrderExists, model.ErrCodeWheelUnavailable, model.ErrCodeInsufficientPoints,
		model.ErrCodeInsufficientStock, model.ErrCodeDealUnavailable, model.ErrCodeAmountMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", model.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	return nil
}

// userID returns the authenticated caller set by middleware.BearerAuth.
func userID(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, model.ErrUnauthorised
	}
	return id, nil
}
