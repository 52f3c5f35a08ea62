// Package pricing computes checkout totals: cart subtotal, wheel discount,
// loyalty point redemption, display currency conversion and points earned.
// The amount charged by the provider is always in the base currency.
package pricing

import (
	"fmt"
	"strings"

	"buydeals/internal/config"
	"buydeals/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input is everything a quote depends on besides configuration.
type Input struct {
	Items                []model.OrderItem
	WheelDiscountPercent decimal.Decimal
	PointsToRedeem       int
	Currency             string
}

// Calculator prices a cart against the configured exchange rates and
// loyalty rules.
type Calculator struct {
	baseCurrency  string
	rates         map[string]decimal.Decimal
	pointsPerEuro decimal.Decimal
	pointValue    decimal.Decimal
}

// NewCalculator creates a calculator from checkout configuration.
func NewCalculator(cfg config.CheckoutConfig) *Calculator {
	rates := make(map[string]decimal.Decimal, len(cfg.ExchangeRates)+1)
	for code, rate := range cfg.ExchangeRates {
		rates[strings.ToUpper(code)] = rate
	}
	base := strings.ToUpper(cfg.BaseCurrency)
	rates[base] = decimal.NewFromInt(1)

	return &Calculator{
		baseCurrency:  base,
		rates:         rates,
		pointsPerEuro: cfg.PointsPerEuro,
		pointValue:    cfg.PointValue,
	}
}

// BaseCurrency returns the currency every provider amount is charged in.
func (c *Calculator) BaseCurrency() string {
	return c.baseCurrency
}

// Quote prices in. Negative intermediate totals are clamped to zero and
// redeemed points are capped at what the discounted subtotal can absorb.
func (c *Calculator) Quote(in Input) (*model.Quote, error) {
	if len(in.Items) == 0 {
		return nil, model.ErrEmptyCart
	}
	if in.PointsToRedeem < 0 {
		return nil, fmt.Errorf("%w: points to redeem cannot be negative", model.ErrInvalidRequest)
	}
	if in.WheelDiscountPercent.IsNegative() || in.WheelDiscountPercent.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: wheel discount must be between 0 and 100", model.ErrInvalidRequest)
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = c.baseCurrency
	}
	rate, ok := c.rates[currency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedCurrency, currency)
	}

	subtotal := decimal.Zero
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", model.ErrInvalidRequest, item.DealID)
		}
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(2)

	wheelDiscount := subtotal.Mul(in.WheelDiscountPercent).Div(hundred).Round(2)
	afterWheel := clampZero(subtotal.Sub(wheelDiscount))

	points := c.redeemablePoints(in.PointsToRedeem, afterWheel)
	pointsDiscount := c.pointValue.Mul(decimal.NewFromInt(int64(points))).Round(2)
	amountDue := clampZero(afterWheel.Sub(pointsDiscount))

	return &model.Quote{
		Items:                in.Items,
		Subtotal:             subtotal,
		WheelDiscountPercent: in.WheelDiscountPercent,
		WheelDiscountAmount:  wheelDiscount,
		SubtotalAfterWheel:   afterWheel,
		PointsRedeemed:       points,
		PointsDiscount:       pointsDiscount,
		AmountDue:            amountDue,
		BaseCurrency:         c.baseCurrency,
		DisplayCurrency:      currency,
		ExchangeRate:         rate,
		DisplayTotal:         amountDue.Mul(rate).Round(2),
		PointsEarned:         c.PointsEarned(amountDue),
	}, nil
}

// PointsEarned returns floor(amount × points per euro).
func (c *Calculator) PointsEarned(amount decimal.Decimal) int {
	if !amount.IsPositive() || !c.pointsPerEuro.IsPositive() {
		return 0
	}
	return int(amount.Mul(c.pointsPerEuro).Floor().IntPart())
}

func (c *Calculator) redeemablePoints(requested int, against decimal.Decimal) int {
	if requested == 0 || !c.pointValue.IsPositive() {
		return 0
	}
	limit := against.Div(c.pointValue).Floor().IntPart()
	if int64(requested) > limit {
		return int(limit)
	}
	return requested
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
