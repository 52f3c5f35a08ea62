package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"buydeals/internal/model"
	"buydeals/internal/provider"
	"buydeals/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// paymentService implements PaymentService.
type paymentService struct {
	orderRepo repository.PaymentOrderRepository
	providers *provider.Registry
	logger    zerolog.Logger
}

// NewPaymentService creates a new payment initiation service.
func NewPaymentService(orderRepo repository.PaymentOrderRepository, providers *provider.Registry, logger zerolog.Logger) PaymentService {
	return &paymentService{
		orderRepo: orderRepo,
		providers: providers,
		logger:    logger.With().Str("service", "payment").Logger(),
	}
}

func (s *paymentService) Initiate(ctx context.Context, providerName string, userID uuid.UUID, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error) {
	if err := validateInitiateRequest(req); err != nil {
		s.logger.Warn().Err(err).Str("provider", providerName).Msg("invalid payment request")
		return nil, err
	}

	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	if !p.SupportsCurrency(currency) {
		return nil, fmt.Errorf("%w: %s does not accept %s", model.ErrUnsupportedCurrency, p.Name(), currency)
	}

	order := &model.PaymentOrder{
		OrderID:        req.OrderID,
		UserID:         userID,
		Provider:       p.Name(),
		Amount:         req.Amount.Round(2),
		Currency:       currency,
		Status:         model.PaymentStatusPending,
		PaymentMethod:  req.PaymentMethod,
		CustomerInfo:   req.CustomerInfo,
		OrderItems:     req.OrderItems,
		WheelSpinID:    req.WheelSpinID,
		PointsRedeemed: req.PointsRedeemed,
	}

	logger := s.logger.With().
		Str("order_id", order.OrderID).
		Str("provider", order.Provider).
		Logger()

	checkout, err := p.Initiate(ctx, order)
	if err != nil {
		logger.Error().Err(err).Msg("provider rejected checkout")
		return nil, fmt.Errorf("failed to initiate payment: %w", err)
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, model.ErrOrderExists) {
			return nil, err
		}
		logger.Error().Err(err).Msg("failed to persist payment order")
		return nil, fmt.Errorf("failed to record payment order: %w", err)
	}

	logger.Info().
		Str("amount", order.Amount.StringFixed(2)).
		Str("currency", order.Currency).
		Str("user_id", userID.String()).
		Msg("payment initiated")

	return &model.InitiatePaymentResponse{
		Success:     true,
		OrderID:     order.OrderID,
		CheckoutURL: checkout.URL,
		Params:      checkout.Params,
	}, nil
}

func (s *paymentService) GetOrder(ctx context.Context, userID uuid.UUID, orderID string) (*model.PaymentOrder, error) {
	order, err := s.orderRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to get payment order")
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, model.ErrPaymentOrderNotFound
	}
	return order, nil
}

func validateInitiateRequest(req *model.InitiatePaymentRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request body is required", model.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return fmt.Errorf("%w: orderId is required", model.ErrInvalidRequest)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", model.ErrInvalidRequest)
	}
	if req.Currency == "" {
		return fmt.Errorf("%w: currency is required", model.ErrInvalidRequest)
	}
	if len(req.OrderItems) == 0 {
		return fmt.Errorf("%w: at least one order item is required", model.ErrInvalidRequest)
	}
	for i, item := range req.OrderItems {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", model.ErrInvalidRequest, i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d price cannot be negative", model.ErrInvalidRequest, i)
		}
	}
	if req.PointsRedeemed < 0 {
		return fmt.Errorf("%w: pointsRedeemed cannot be negative", model.ErrInvalidRequest)
	}
	return nil
}
