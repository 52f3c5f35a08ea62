package handler

import (
	"context"
	"net/http"
	"strings"

	"buydeals/internal/middleware"
	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockDealService is a mock implementation of DealService.
type MockDealService struct {
	mock.Mock
}

func (m *MockDealService) List(ctx context.Context, limit, offset int) ([]model.Deal, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Deal), args.Error(1)
}

func (m *MockDealService) GetByID(ctx context.Context, id uuid.UUID) (*model.Deal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Initiate(ctx context.Context, providerName string, userID uuid.UUID, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error) {
	args := m.Called(ctx, providerName, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InitiatePaymentResponse), args.Error(1)
}

func (m *MockPaymentService) GetOrder(ctx context.Context, userID uuid.UUID, orderID string) (*model.PaymentOrder, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentOrder), args.Error(1)
}

// MockSettlementService is a mock implementation of SettlementService.
type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) HandleNotification(ctx context.Context, providerName string, params map[string]string) (*model.SettlementResult, error) {
	args := m.Called(ctx, providerName, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementResult), args.Error(1)
}

func (m *MockSettlementService) WebhookKey(ctx context.Context, providerName string) (string, error) {
	args := m.Called(ctx, providerName)
	return args.String(0), args.Error(1)
}

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Quote(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Quote, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quote), args.Error(1)
}

func (m *MockCheckoutService) Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutResponse), args.Error(1)
}

func (m *MockCheckoutService) InitiatePayment(ctx context.Context, providerName string, userID uuid.UUID, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error) {
	args := m.Called(ctx, providerName, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InitiatePaymentResponse), args.Error(1)
}

// authenticated returns req as if middleware.BearerAuth had accepted it.
func authenticated(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}
