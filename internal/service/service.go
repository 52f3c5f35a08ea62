package service

import (
	"context"

	"buydeals/internal/model"
	"buydeals/internal/repository"

	"github.com/google/uuid"
)

// DealService defines read-only deal browsing.
type DealService interface {
	// List retrieves active deals with pagination.
	List(ctx context.Context, limit, offset int) ([]model.Deal, error)

	// GetByID retrieves a single deal by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Deal, error)
}

// PaymentService hands orders to a payment provider.
type PaymentService interface {
	// Initiate validates the request, builds the provider checkout and
	// records a pending payment order. Nothing is persisted when the
	// provider request cannot be built.
	Initiate(ctx context.Context, providerName string, userID uuid.UUID, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error)

	// GetOrder returns one of the user's payment orders.
	GetOrder(ctx context.Context, userID uuid.UUID, orderID string) (*model.PaymentOrder, error)
}

// SettlementService applies provider notifications.
type SettlementService interface {
	// HandleNotification verifies and applies a provider callback. Rejected,
	// unknown and repeated notifications are reported in the result, not
	// as errors.
	HandleNotification(ctx context.Context, providerName string, params map[string]string) (*model.SettlementResult, error)

	// WebhookKey returns the URL verification key for providers that use one.
	WebhookKey(ctx context.Context, providerName string) (string, error)
}

// CheckoutService prices orders on the server and starts payment.
type CheckoutService interface {
	Quote(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Quote, error)
	Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.CheckoutResponse, error)

	// InitiatePayment starts payment for explicit order items. The amount
	// is rejected unless it equals the catalogue-priced total.
	InitiatePayment(ctx context.Context, providerName string, userID uuid.UUID, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error)
}

// Repositories groups the data access dependencies of the services.
type Repositories struct {
	PaymentOrders repository.PaymentOrderRepository
	Deals         repository.DealRepository
	Carts         repository.CartRepository
	Purchases     repository.PurchaseRepository
	Loyalty       repository.LoyaltyRepository
	Wheels        repository.WheelRepository
}
