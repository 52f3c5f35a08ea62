package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutRequest is the body of POST /api/checkout and /api/checkout/quote.
type CheckoutRequest struct {
	OrderID        string       `json:"orderId"`
	Provider       string       `json:"provider"`
	Currency       string       `json:"currency"`
	WheelSpinID    *uuid.UUID   `json:"wheelSpinId,omitempty"`
	PointsToRedeem int          `json:"pointsToRedeem,omitempty"`
	PaymentMethod  string       `json:"paymentMethod,omitempty"`
	CustomerInfo   CustomerInfo `json:"customerInfo"`
}

// Quote is the full breakdown of a checkout. AmountDue is what the provider
// charges, always in the base currency; DisplayTotal is informational.
type Quote struct {
	Items                []OrderItem     `json:"items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	WheelDiscountPercent decimal.Decimal `json:"wheelDiscountPercent"`
	WheelDiscountAmount  decimal.Decimal `json:"wheelDiscountAmount"`
	SubtotalAfterWheel   decimal.Decimal `json:"subtotalAfterWheel"`
	PointsRedeemed       int             `json:"pointsRedeemed"`
	PointsDiscount       decimal.Decimal `json:"pointsDiscount"`
	AmountDue            decimal.Decimal `json:"amountDue"`
	BaseCurrency         string          `json:"baseCurrency"`
	DisplayCurrency      string          `json:"displayCurrency"`
	ExchangeRate         decimal.Decimal `json:"exchangeRate"`
	DisplayTotal         decimal.Decimal `json:"displayTotal"`
	PointsEarned         int             `json:"pointsEarned"`
}

// CheckoutResponse is the initiation result together with the server-side
// quote it was computed from.
type CheckoutResponse struct {
	InitiatePaymentResponse
	Quote *Quote `json:"quote"`
}
