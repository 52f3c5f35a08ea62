package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buydeals/internal/model"
	"buydeals/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// orderIDPrefix marks payment orders created by the storefront checkout.
const orderIDPrefix = "BDC-"

// checkoutService implements CheckoutService.
type checkoutService struct {
	repos          Repositories
	payments       PaymentService
	calculator     *pricing.Calculator
	reservationTTL time.Duration
	now            func() time.Time
	logger         zerolog.Logger
}

// NewCheckoutService creates a new checkout orchestrator. Totals are always
// computed from the stored cart, never taken from the client.
func NewCheckoutService(
	repos Repositories,
	payments PaymentService,
	calculator *pricing.Calculator,
	reservationTTL time.Duration,
	logger zerolog.Logger,
) CheckoutService {
	if reservationTTL <= 0 {
		reservationTTL = 30 * time.Minute
	}
	return &checkoutService{
		repos:          repos,
		payments:       payments,
		calculator:     calculator,
		reservationTTL: reservationTTL,
		now:            time.Now,
		logger:         logger.With().Str("service", "checkout").Logger(),
	}
}

// Quote prices the user's current cart.
func (s *checkoutService) Quote(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Quote, error) {
	if req == nil {
		req = &model.CheckoutRequest{}
	}

	lines, err := s.repos.Carts.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to load cart")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, model.ErrEmptyCart
	}

	return s.price(ctx, userID, lines, pricingRequest{
		OrderID:        req.OrderID,
		WheelSpinID:    req.WheelSpinID,
		PointsToRedeem: req.PointsToRedeem,
		Currency:       req.Currency,
	})
}

// Checkout prices the cart, reserves the wheel discount and loyalty points
// for the new order and hands the order to the payment provider.
func (s *checkoutService) Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	if req == nil || strings.TrimSpace(req.Provider) == "" {
		return nil, fmt.Errorf("%w: provider is required", model.ErrInvalidRequest)
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		orderID = newOrderID()
	}
	priced := *req
	priced.OrderID = orderID

	quote, err := s.Quote(ctx, userID, &priced)
	if err != nil {
		return nil, err
	}
	if !quote.AmountDue.IsPositive() {
		return nil, fmt.Errorf("%w: nothing left to pay after discounts", model.ErrInvalidRequest)
	}

	resp, err := s.start(ctx, req.Provider, userID, quote, &model.InitiatePaymentRequest{
		OrderID:       orderID,
		CustomerInfo:  req.CustomerInfo,
		PaymentMethod: req.PaymentMethod,
		WheelSpinID:   req.WheelSpinID,
	})
	if err != nil {
		return nil, err
	}
	return &model.CheckoutResponse{InitiatePaymentResponse: *resp, Quote: quote}, nil
}

// InitiatePayment starts a payment for an explicit list of deals. Items are
// repriced from the deal catalogue and the client's amount must equal the
// server total; the client's prices and titles are discarded.
func (s *checkoutService) InitiatePayment(ctx context.Context, providerName string, userID uuid.UUID, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error) {
	if err := validateInitiateRequest(req); err != nil {
		s.logger.Warn().Err(err).Str("provider", providerName).Msg("invalid payment request")
		return nil, err
	}
	if !strings.EqualFold(req.Currency, s.calculator.BaseCurrency()) {
		return nil, fmt.Errorf("%w: payments are charged in %s", model.ErrUnsupportedCurrency, s.calculator.BaseCurrency())
	}

	lines, err := s.dealLines(ctx, userID, req.OrderItems)
	if err != nil {
		return nil, err
	}

	quote, err := s.price(ctx, userID, lines, pricingRequest{
		OrderID:        req.OrderID,
		WheelSpinID:    req.WheelSpinID,
		PointsToRedeem: req.PointsRedeemed,
		Currency:       s.calculator.BaseCurrency(),
	})
	if err != nil {
		return nil, err
	}

	if amount := req.Amount.Round(2); !amount.Equal(quote.AmountDue) {
		s.logger.Warn().
			Str("order_id", req.OrderID).
			Str("user_id", userID.String()).
			Str("amount", amount.StringFixed(2)).
			Str("amount_due", quote.AmountDue.StringFixed(2)).
			Msg("payment amount does not match order total")
		return nil, fmt.Errorf("%w: expected %s, got %s", model.ErrAmountMismatch, quote.AmountDue.StringFixed(2), amount.StringFixed(2))
	}

	return s.start(ctx, providerName, userID, quote, &model.InitiatePaymentRequest{
		OrderID:       req.OrderID,
		CustomerInfo:  req.CustomerInfo,
		PaymentMethod: req.PaymentMethod,
		WheelSpinID:   req.WheelSpinID,
	})
}

// pricingRequest carries the discounts applied on top of a set of lines.
type pricingRequest struct {
	OrderID        string
	WheelSpinID    *uuid.UUID
	PointsToRedeem int
	Currency       string
}

// price checks the lines are still purchasable and quotes them with the
// requested wheel discount and points.
func (s *checkoutService) price(ctx context.Context, userID uuid.UUID, lines []model.CartLine, req pricingRequest) (*model.Quote, error) {
	if err := checkLines(lines); err != nil {
		return nil, err
	}

	wheelPercent := decimal.Zero
	if req.WheelSpinID != nil {
		wheel, err := s.repos.Wheels.GetForUser(ctx, *req.WheelSpinID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load wheel discount: %w", err)
		}
		if err := s.checkWheel(wheel, req.OrderID); err != nil {
			return nil, err
		}
		wheelPercent = wheel.DiscountPercentage
	}

	if req.PointsToRedeem > 0 {
		account, err := s.repos.Loyalty.GetByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load loyalty account: %w", err)
		}
		if available := account.Available(); available < req.PointsToRedeem {
			return nil, fmt.Errorf("%w: %d points available", model.ErrInsufficientPoints, available)
		}
	}

	return s.calculator.Quote(pricing.Input{
		Items:                cartItems(lines),
		WheelDiscountPercent: wheelPercent,
		PointsToRedeem:       req.PointsToRedeem,
		Currency:             req.Currency,
	})
}

// start reserves the wheel discount and holds the redeemed points for
// order.OrderID, then hands the quoted order to the provider. Reservations
// are dropped again when a later step fails, except when the order id is
// already taken and the reservations may belong to that order.
func (s *checkoutService) start(ctx context.Context, providerName string, userID uuid.UUID, quote *model.Quote, order *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error) {
	logger := s.logger.With().
		Str("order_id", order.OrderID).
		Str("user_id", userID.String()).
		Logger()

	until := s.now().Add(s.reservationTTL)
	release := func(err error) {
		if errors.Is(err, model.ErrOrderExists) {
			return
		}
		if order.WheelSpinID != nil {
			if _, cancelErr := s.repos.Wheels.CancelReservation(ctx, order.OrderID); cancelErr != nil {
				logger.Error().Err(cancelErr).Msg("failed to release wheel reservation")
			}
		}
		if quote.PointsRedeemed > 0 {
			if _, cancelErr := s.repos.Loyalty.CancelHold(ctx, order.OrderID); cancelErr != nil {
				logger.Error().Err(cancelErr).Msg("failed to release points hold")
			}
		}
	}

	if order.WheelSpinID != nil {
		if _, err := s.repos.Wheels.Reserve(ctx, *order.WheelSpinID, userID, order.OrderID, until); err != nil {
			logger.Warn().Err(err).Msg("failed to reserve wheel discount")
			return nil, err
		}
	}

	if quote.PointsRedeemed > 0 {
		if err := s.repos.Loyalty.Hold(ctx, userID, order.OrderID, quote.PointsRedeemed, until); err != nil {
			logger.Warn().Err(err).Int("points", quote.PointsRedeemed).Msg("failed to hold loyalty points")
			release(err)
			return nil, err
		}
	}

	order.Amount = quote.AmountDue
	order.Currency = s.calculator.BaseCurrency()
	order.OrderItems = quote.Items
	order.PointsRedeemed = quote.PointsRedeemed

	resp, err := s.payments.Initiate(ctx, providerName, userID, order)
	if err != nil {
		release(err)
		return nil, err
	}

	logger.Info().
		Str("provider", providerName).
		Str("amount_due", quote.AmountDue.StringFixed(2)).
		Str("display_currency", quote.DisplayCurrency).
		Int("points_redeemed", quote.PointsRedeemed).
		Msg("checkout started")

	return resp, nil
}

// dealLines turns requested items into lines priced from the catalogue.
// Repeated deals are merged.
func (s *checkoutService) dealLines(ctx context.Context, userID uuid.UUID, items []model.OrderItem) ([]model.CartLine, error) {
	now := s.now()
	lines := make([]model.CartLine, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))

	for _, item := range items {
		if i, ok := index[item.DealID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}

		deal, err := s.repos.Deals.GetByID(ctx, item.DealID)
		if err != nil {
			return nil, fmt.Errorf("failed to load deal: %w", err)
		}
		if deal == nil {
			return nil, fmt.Errorf("%w: deal %s does not exist", model.ErrDealUnavailable, item.DealID)
		}

		index[item.DealID] = len(lines)
		lines = append(lines, model.CartLine{
			UserID:        userID,
			DealID:        deal.ID,
			Title:         deal.Title,
			Quantity:      item.Quantity,
			UnitPrice:     deal.DealPrice,
			StockQuantity: deal.StockQuantity,
			OnSale:        deal.OnSale(now),
		})
	}
	return lines, nil
}

// checkLines rejects deals that are off sale or short of stock. Stock is
// checked again when the payment settles.
func checkLines(lines []model.CartLine) error {
	for _, line := range lines {
		if !line.OnSale {
			return fmt.Errorf("%w: %s", model.ErrDealUnavailable, line.Title)
		}
		if line.Quantity > line.StockQuantity {
			return fmt.Errorf("%w: %d of %s requested, %d left", model.ErrInsufficientStock, line.Quantity, line.Title, line.StockQuantity)
		}
	}
	return nil
}

// checkWheel rejects discounts that cannot be applied to orderID.
func (s *checkoutService) checkWheel(wheel *model.WheelDiscount, orderID string) error {
	if wheel == nil || wheel.IsRedeemed {
		return model.ErrWheelUnavailable
	}
	now := s.now()
	if !wheel.ExpiresAt.After(now) {
		return fmt.Errorf("%w: expired at %s", model.ErrWheelUnavailable, wheel.ExpiresAt.Format(time.RFC3339))
	}
	if wheel.ReservedOrderID != nil && *wheel.ReservedOrderID != orderID &&
		wheel.ReservedUntil != nil && wheel.ReservedUntil.After(now) {
		return fmt.Errorf("%w: reserved by another order", model.ErrWheelUnavailable)
	}
	return nil
}

func cartItems(lines []model.CartLine) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, model.OrderItem{
			DealID:    line.DealID,
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return items
}

func newOrderID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return orderIDPrefix + id[:16]
}
