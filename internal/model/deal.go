package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deal is a time-limited offer with finite stock.
type Deal struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Title         string          `json:"title" db:"title"`
	DealPrice     decimal.Decimal `json:"dealPrice" db:"deal_price"`
	StockQuantity int             `json:"stockQuantity" db:"stock_quantity"`
	SoldQuantity  int             `json:"soldQuantity" db:"sold_quantity"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	EndsAt        *time.Time      `json:"endsAt,omitempty" db:"ends_at"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// OnSale reports whether the deal can still be bought at now.
func (d *Deal) OnSale(now time.Time) bool {
	return d.IsActive && (d.EndsAt == nil || d.EndsAt.After(now))
}

// CartLine is a cart item joined with the deal it points at. OnSale and
// StockQuantity reflect the deal when the line was read.
type CartLine struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"userId" db:"user_id"`
	DealID        uuid.UUID       `json:"dealId" db:"deal_id"`
	Title         string          `json:"title" db:"title"`
	Quantity      int             `json:"quantity" db:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice" db:"deal_price"`
	StockQuantity int             `json:"stockQuantity" db:"stock_quantity"`
	OnSale        bool            `json:"onSale" db:"on_sale"`
}

// Purchase is an append-only ledger entry written once per line on settlement.
type Purchase struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"userId" db:"user_id"`
	DealID         uuid.UUID       `json:"dealId" db:"deal_id"`
	Quantity       int             `json:"quantity" db:"quantity"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice" db:"purchase_price"`
	Status         string          `json:"status" db:"status"`
	PaymentOrderID string          `json:"paymentOrderId" db:"payment_order_id"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

// LoyaltyAccount holds a user's point balance. PointsHeld is the part of the
// balance set aside for orders that have not settled yet.
type LoyaltyAccount struct {
	UserID               uuid.UUID `json:"userId" db:"user_id"`
	PointsBalance        int       `json:"pointsBalance" db:"points_balance"`
	PointsHeld           int       `json:"pointsHeld" db:"points_held"`
	LifetimePointsEarned int       `json:"lifetimePointsEarned" db:"lifetime_points_earned"`
	LifetimePointsSpent  int       `json:"lifetimePointsSpent" db:"lifetime_points_spent"`
}

// Available returns the points that can still be redeemed.
func (a *LoyaltyAccount) Available() int {
	if free := a.PointsBalance - a.PointsHeld; free > 0 {
		return free
	}
	return 0
}

// WheelDiscount is a wheel-of-surprise spin result.
type WheelDiscount struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	UserID             uuid.UUID       `json:"userId" db:"user_id"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage" db:"discount_percentage"`
	IsRedeemed         bool            `json:"isRedeemed" db:"is_redeemed"`
	ExpiresAt          time.Time       `json:"expiresAt" db:"expires_at"`
	ReservedOrderID    *string         `json:"reservedOrderId,omitempty" db:"reserved_order_id"`
	ReservedUntil      *time.Time      `json:"reservedUntil,omitempty" db:"reserved_until"`
}
