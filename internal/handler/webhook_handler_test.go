package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"buydeals/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWebhookHandler_Notify_Form(t *testing.T) {
	svc := new(MockSettlementService)
	h := NewWebhookHandler(svc, zerolog.Nop())

	form := url.Values{
		"IPCmethod":  {"IPCPurchaseNotify"},
		"OrderID":    {"ORD-1001"},
		"Amount":     {"40.00"},
		"Currency":   {"EUR"},
		"IPC_Trnref": {"12345"},
		"Signature":  {"c2ln"},
	}
	svc.On("HandleNotification", mock.Anything, "mypos", map[string]string{
		"IPCmethod":  "IPCPurchaseNotify",
		"OrderID":    "ORD-1001",
		"Amount":     "40.00",
		"Currency":   "EUR",
		"IPC_Trnref": "12345",
		"Signature":  "c2ln",
	}).Return(&model.SettlementResult{Outcome: model.SettlementApplied, OrderID: "ORD-1001"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/mypos-webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Notify("mypos")(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	svc.AssertExpectations(t)
}

func TestWebhookHandler_Notify_NestedJSON(t *testing.T) {
	svc := new(MockSettlementService)
	h := NewWebhookHandler(svc, zerolog.Nop())

	body := `{
		"EventTypeId": 1796,
		"Delay":       null,
		"EventData": {
			"TransactionId": "b1a3f2c4-0000-4000-8000-000000000001",
			"MerchantTrns":  "ORD-2001",
			"Amount":        50.00,
			"Tags":          ["a", "b"],
			"IsManualRefund": false
		}
	}`
	svc.On("HandleNotification", mock.Anything, "viva", map[string]string{
		"EventTypeId":              "1796",
		"Delay":                    "",
		"EventData.TransactionId":  "b1a3f2c4-0000-4000-8000-000000000001",
		"EventData.MerchantTrns":   "ORD-2001",
		"EventData.Amount":         "50.00",
		"EventData.Tags.0":         "a",
		"EventData.Tags.1":         "b",
		"EventData.IsManualRefund": "false",
	}).Return(&model.SettlementResult{Outcome: model.SettlementApplied}, nil)

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/viva-webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()

	h.Notify("viva")(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	svc.AssertExpectations(t)
}

func TestWebhookHandler_Notify_AlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		result      *model.SettlementResult
		err         error
		expectCall  bool
	}{
		{name: "Rejected signature", contentType: "application/x-www-form-urlencoded", body: "OrderID=ORD-1&Signature=bad", result: &model.SettlementResult{Outcome: model.SettlementRejected}, expectCall: true},
		{name: "Processing error", contentType: "application/x-www-form-urlencoded", body: "OrderID=ORD-1", err: errors.New("database unavailable"), expectCall: true},
		{name: "Malformed JSON", contentType: "application/json", body: `{"EventData":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSettlementService)
			h := NewWebhookHandler(svc, zerolog.Nop())
			if tt.expectCall {
				svc.On("HandleNotification", mock.Anything, "mypos", mock.Anything).Return(tt.result, tt.err)
			}

			req := httptest.NewRequest(http.MethodPost, "/functions/v1/mypos-webhook", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			h.Notify("mypos")(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "OK", w.Body.String())
			if !tt.expectCall {
				svc.AssertNotCalled(t, "HandleNotification", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestWebhookHandler_VerificationKey(t *testing.T) {
	svc := new(MockSettlementService)
	h := NewWebhookHandler(svc, zerolog.Nop())
	svc.On("WebhookKey", mock.Anything, "viva").Return("3A1F00C7", nil)

	w := httptest.NewRecorder()
	h.VerificationKey("viva")(w, httptest.NewRequest(http.MethodGet, "/functions/v1/viva-webhook", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "3A1F00C7", body["Key"])
}
