package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"buydeals/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPaymentHandler_GetOrder(t *testing.T) {
	userID := uuid.New()
	txn := "TRN-77"

	tests := []struct {
		name           string
		mockReturn     *model.PaymentOrder
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Settled order",
			mockReturn:     &model.PaymentOrder{OrderID: "ORD-1", UserID: userID, Status: model.PaymentStatusCompleted, TransactionID: &txn},
			expectedStatus: http.StatusOK,
		},
		{name: "Not found", mockError: model.ErrPaymentOrderNotFound, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			h := NewPaymentHandler(svc, zerolog.Nop())
			svc.On("GetOrder", mock.Anything, userID, "ORD-1").Return(tt.mockReturn, tt.mockError)

			r := chi.NewRouter()
			r.Get("/api/payment-orders/{orderId}", h.GetOrder)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, authenticated(httptest.NewRequest(http.MethodGet, "/api/payment-orders/ORD-1", nil), userID))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var got map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, "completed", got["status"])
				assert.NotContains(t, got, "paymentResponse")
			}
		})
	}
}
