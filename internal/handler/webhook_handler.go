package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"buydeals/internal/service"

	"github.com/rs/zerolog"
)

// WebhookHandler receives provider payment notifications.
type WebhookHandler struct {
	service service.SettlementService
	logger  zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.SettlementService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With().Str("handler", "webhook").Logger(),
	}
}

// Notify returns the handler for POST /functions/v1/{provider}-webhook.
// The provider always gets 200 "OK"; verification failures and processing
// errors are only logged.
func (h *WebhookHandler) Notify(providerName string) http.HandlerFunc {
	logger := h.logger.With().Str("provider", providerName).Logger()

	return func(w http.ResponseWriter, r *http.Request) {
		defer acknowledge(w)

		params, err := readNotification(w, r)
		if err != nil {
			logger.Warn().Err(err).Msg("unreadable notification body")
			return
		}

		result, err := h.service.HandleNotification(r.Context(), providerName, params)
		if err != nil {
			logger.Error().Err(err).Msg("failed to process notification")
			return
		}

		logger.Info().
			Str("outcome", string(result.Outcome)).
			Str("order_id", result.OrderID).
			Str("status", string(result.Status)).
			Msg("notification processed")
	}
}

// VerificationKey returns the handler for GET /functions/v1/{provider}-webhook,
// used by providers that confirm a webhook URL before sending events.
func (h *WebhookHandler) VerificationKey(providerName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := h.service.WebhookKey(r.Context(), providerName)
		if err != nil {
			writeError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"Key": key})
	}
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// readNotification reads a form or JSON notification into a flat map.
// Nested JSON objects become dotted keys such as "EventData.TransactionId".
func readNotification(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()

		var body map[string]any
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to decode JSON notification: %w", err)
		}
		params := make(map[string]string)
		flatten("", body, params)
		return params, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form notification: %w", err)
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params, nil
}

func flatten(prefix string, value any, out map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			flatten(joinKey(prefix, key), child, out)
		}
	case []any:
		for i, child := range v {
			flatten(joinKey(prefix, strconv.Itoa(i)), child, out)
		}
	case nil:
		out[prefix] = ""
	case string:
		out[prefix] = v
	case json.Number:
		out[prefix] = v.String()
	case bool:
		out[prefix] = strconv.FormatBool(v)
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.Join([]string{prefix, key}, ".")
}
