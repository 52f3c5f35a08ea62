package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a PaymentOrder.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// PaymentOrder is the local record of one provider checkout. It is created
// pending by initiation and mutated only by settlement.
type PaymentOrder struct {
	OrderID          string            `json:"orderId" db:"order_id"`
	UserID           uuid.UUID         `json:"userId" db:"user_id"`
	Provider         string            `json:"provider" db:"provider"`
	Amount           decimal.Decimal   `json:"amount" db:"amount"`
	Currency         string            `json:"currency" db:"currency"`
	Status           PaymentStatus     `json:"status" db:"status"`
	PaymentMethod    string            `json:"paymentMethod" db:"payment_method"`
	CustomerInfo     CustomerInfo      `json:"customerInfo" db:"customer_info"`
	OrderItems       []OrderItem       `json:"orderItems" db:"order_items"`
	TransactionID    *string           `json:"transactionId,omitempty" db:"transaction_id"`
	PaymentResponse  map[string]string `json:"-" db:"payment_response"`
	WheelSpinID      *uuid.UUID        `json:"wheelSpinId,omitempty" db:"wheel_spin_id"`
	PointsRedeemed   int               `json:"pointsRedeemed" db:"points_redeemed"`
	FulfillmentError *string           `json:"-" db:"fulfillment_error"`
	CreatedAt        time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time         `json:"updatedAt" db:"updated_at"`
}

// OrderItem is one cart line as it was when the payment was initiated.
type OrderItem struct {
	DealID    uuid.UUID       `json:"dealId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineTotal returns unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CustomerInfo is the address and contact snapshot sent to the provider.
type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

// InitiatePaymentRequest is the body of POST /functions/v1/{provider}-initiate-payment.
type InitiatePaymentRequest struct {
	OrderID        string          `json:"orderId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	OrderItems     []OrderItem     `json:"orderItems"`
	CustomerInfo   CustomerInfo    `json:"customerInfo"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	WheelSpinID    *uuid.UUID      `json:"wheelSpinId,omitempty"`
	PointsRedeemed int             `json:"pointsRedeemed,omitempty"`
}

// InitiatePaymentResponse tells the client where to send the payer.
type InitiatePaymentResponse struct {
	Success     bool              `json:"success"`
	OrderID     string            `json:"orderId"`
	CheckoutURL string            `json:"checkoutUrl"`
	Params      map[string]string `json:"params"`
}

// SettlementOutcome summarises what a provider notification did.
type SettlementOutcome string

const (
	SettlementApplied   SettlementOutcome = "applied"
	SettlementRejected  SettlementOutcome = "rejected"
	SettlementDuplicate SettlementOutcome = "duplicate"
	SettlementUnknown   SettlementOutcome = "unknown_order"
	SettlementErrored   SettlementOutcome = "fulfillment_error"
	SettlementPending   SettlementOutcome = "in_progress"
)

// SettlementResult is returned by the settlement service for logging and tests.
// It never changes the HTTP acknowledgement sent to the provider.
type SettlementResult struct {
	Outcome       SettlementOutcome `json:"outcome"`
	OrderID       string            `json:"orderId,omitempty"`
	Status        PaymentStatus     `json:"status,omitempty"`
	TransactionID string            `json:"transactionId,omitempty"`
	PointsEarned  int               `json:"pointsEarned,omitempty"`
}
