package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buydeals/internal/events"
	"buydeals/internal/model"
	"buydeals/internal/pricing"
	"buydeals/internal/provider"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// settlementService implements SettlementService.
type settlementService struct {
	repos      Repositories
	providers  *provider.Registry
	calculator *pricing.Calculator
	publisher  events.Publisher
	now        func() time.Time
	logger     zerolog.Logger
}

// NewSettlementService creates a new webhook settlement service.
func NewSettlementService(
	repos Repositories,
	providers *provider.Registry,
	calculator *pricing.Calculator,
	publisher events.Publisher,
	logger zerolog.Logger,
) SettlementService {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	return &settlementService{
		repos:      repos,
		providers:  providers,
		calculator: calculator,
		publisher:  publisher,
		now:        time.Now,
		logger:     logger.With().Str("service", "settlement").Logger(),
	}
}

// HandleNotification verifies params and, in one transaction, moves the
// pending order to its outcome. A completed payment also records the
// purchases, takes the stock, applies loyalty points, redeems the wheel
// discount and empties the cart. Verification failures, unknown orders and
// repeated deliveries leave every row untouched.
func (s *settlementService) HandleNotification(ctx context.Context, providerName string, params map[string]string) (*model.SettlementResult, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("provider", p.Name()).Logger()

	n, err := p.ParseNotification(ctx, params)
	if err != nil {
		logger.Warn().Err(err).Msg("rejected provider notification")
		return &model.SettlementResult{Outcome: model.SettlementRejected}, nil
	}

	logger = logger.With().
		Str("order_id", n.OrderID).
		Str("transaction_id", n.TransactionID).
		Str("outcome", string(n.Status)).
		Logger()

	if !n.Status.IsTerminal() {
		logger.Info().Msg("payment still in progress, order left pending")
		return &model.SettlementResult{Outcome: model.SettlementPending, OrderID: n.OrderID, Status: n.Status}, nil
	}

	tx, err := s.repos.PaymentOrders.BeginTx(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Error().Err(err).Msg("failed to rollback transaction")
		}
	}()

	order, err := s.repos.PaymentOrders.LockByOrderID(ctx, tx, n.OrderID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to lock payment order")
		return nil, fmt.Errorf("failed to lock payment order: %w", err)
	}
	if order == nil {
		logger.Warn().Msg("notification for unknown payment order")
		return &model.SettlementResult{Outcome: model.SettlementUnknown, OrderID: n.OrderID}, nil
	}

	if order.Status.IsTerminal() {
		logger.Info().Str("status", string(order.Status)).Msg("payment order already settled")
		return &model.SettlementResult{
			Outcome:       model.SettlementDuplicate,
			OrderID:       order.OrderID,
			Status:        order.Status,
			TransactionID: deref(order.TransactionID),
		}, nil
	}

	if err := matchOrder(order, p.Name(), n); err != nil {
		logger.Warn().Err(err).Msg("notification does not match payment order")
		return &model.SettlementResult{Outcome: model.SettlementRejected, OrderID: order.OrderID}, nil
	}

	updated, err := s.repos.PaymentOrders.MarkSettled(ctx, tx, order.OrderID, n.Status, n.TransactionID, n.Raw)
	if err != nil {
		logger.Error().Err(err).Msg("failed to settle payment order")
		return nil, fmt.Errorf("failed to settle payment order: %w", err)
	}
	if !updated {
		return &model.SettlementResult{Outcome: model.SettlementDuplicate, OrderID: order.OrderID}, nil
	}

	earned := 0
	var fulfillErr error
	switch n.Status {
	case model.PaymentStatusCompleted:
		earned = s.calculator.PointsEarned(order.Amount)
		fulfillErr = s.fulfill(ctx, tx, order, earned)
	default:
		fulfillErr = s.releaseReservations(ctx, tx, order)
	}

	if fulfillErr == nil {
		if err := tx.Commit(ctx); err != nil {
			fulfillErr = fmt.Errorf("failed to commit settlement: %w", err)
		}
	}

	if fulfillErr != nil {
		return s.recordFulfillmentError(ctx, tx, order, n, fulfillErr, logger)
	}

	logger.Info().
		Str("amount", order.Amount.StringFixed(2)).
		Int("points_earned", earned).
		Msg("payment order settled")

	s.publish(ctx, order, n, earned, "")

	return &model.SettlementResult{
		Outcome:       model.SettlementApplied,
		OrderID:       order.OrderID,
		Status:        n.Status,
		TransactionID: n.TransactionID,
		PointsEarned:  earned,
	}, nil
}

// WebhookKey returns the URL verification key for providerName.
func (s *settlementService) WebhookKey(ctx context.Context, providerName string) (string, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	keyer, ok := p.(provider.WebhookKeyer)
	if !ok {
		return "", fmt.Errorf("%w: %s has no webhook key", model.ErrUnknownProvider, p.Name())
	}
	return keyer.WebhookKey(ctx)
}

// fulfill applies the side effects of a completed payment from the order
// snapshot taken at initiation.
func (s *settlementService) fulfill(ctx context.Context, tx pgx.Tx, order *model.PaymentOrder, earned int) error {
	lines := aggregateItems(order.OrderItems)

	purchases := make([]model.Purchase, 0, len(lines))
	for _, item := range lines {
		purchases = append(purchases, model.Purchase{
			ID:             uuid.New(),
			UserID:         order.UserID,
			DealID:         item.DealID,
			Quantity:       item.Quantity,
			PurchasePrice:  item.UnitPrice,
			Status:         string(model.PaymentStatusCompleted),
			PaymentOrderID: order.OrderID,
		})
	}

	inserted, err := s.repos.Purchases.CreateBatch(ctx, tx, purchases)
	if err != nil {
		return fmt.Errorf("failed to record purchases: %w", err)
	}
	if inserted == 0 && len(purchases) > 0 {
		return fmt.Errorf("purchases for order %s already recorded", order.OrderID)
	}

	for _, item := range lines {
		if err := s.repos.Deals.DecrementStock(ctx, tx, item.DealID, item.Quantity); err != nil {
			return fmt.Errorf("failed to take stock for deal %s: %w", item.DealID, err)
		}
	}

	if earned > 0 || order.PointsRedeemed > 0 {
		debited, err := s.repos.Loyalty.ApplyOrder(ctx, tx, order.UserID, order.OrderID, earned, order.PointsRedeemed)
		if err != nil {
			return fmt.Errorf("failed to apply loyalty points: %w", err)
		}
		if debited < order.PointsRedeemed {
			s.logger.Warn().
				Str("order_id", order.OrderID).
				Str("user_id", order.UserID.String()).
				Int("points_redeemed", order.PointsRedeemed).
				Int("points_debited", debited).
				Msg("loyalty balance short of redeemed points")
		}
	}

	if order.WheelSpinID != nil {
		redeemed, err := s.repos.Wheels.Redeem(ctx, tx, order.OrderID)
		if err != nil {
			return fmt.Errorf("failed to redeem wheel discount: %w", err)
		}
		if redeemed == 0 {
			s.logger.Warn().
				Str("order_id", order.OrderID).
				Str("wheel_spin_id", order.WheelSpinID.String()).
				Msg("wheel reservation no longer held by order")
		}
	}

	if _, err := s.repos.Carts.ClearByUser(ctx, tx, order.UserID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

// releaseReservations frees the wheel discount and points held for a
// failed order.
func (s *settlementService) releaseReservations(ctx context.Context, tx pgx.Tx, order *model.PaymentOrder) error {
	if order.WheelSpinID != nil {
		if _, err := s.repos.Wheels.Release(ctx, tx, order.OrderID); err != nil {
			return fmt.Errorf("failed to release wheel discount: %w", err)
		}
	}
	if order.PointsRedeemed > 0 {
		if _, err := s.repos.Loyalty.ReleaseHold(ctx, tx, order.OrderID); err != nil {
			return fmt.Errorf("failed to release points hold: %w", err)
		}
	}
	return nil
}

// recordFulfillmentError discards the settlement transaction and stores the
// provider outcome together with the failure reason for reconciliation.
func (s *settlementService) recordFulfillmentError(
	ctx context.Context,
	tx pgx.Tx,
	order *model.PaymentOrder,
	n *provider.Notification,
	cause error,
	logger zerolog.Logger,
) (*model.SettlementResult, error) {
	logger.Error().Err(cause).Msg("fulfillment failed, settlement rolled back")

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error().Err(err).Msg("failed to rollback transaction")
	}

	if _, err := s.repos.PaymentOrders.MarkFulfillmentError(ctx, order.OrderID, n.Status, n.TransactionID, n.Raw, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("failed to record fulfillment error")
	}

	s.publish(ctx, order, n, 0, cause.Error())

	return &model.SettlementResult{
		Outcome:       model.SettlementErrored,
		OrderID:       order.OrderID,
		Status:        n.Status,
		TransactionID: n.TransactionID,
	}, nil
}

func (s *settlementService) publish(ctx context.Context, order *model.PaymentOrder, n *provider.Notification, earned int, fulfillmentError string) {
	event := events.PaymentSettled{
		OrderID:          order.OrderID,
		UserID:           order.UserID,
		Provider:         order.Provider,
		Status:           n.Status,
		Amount:           order.Amount,
		Currency:         order.Currency,
		TransactionID:    n.TransactionID,
		PointsEarned:     earned,
		FulfillmentError: fulfillmentError,
		SettledAt:        s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event.RoutingKey(), event); err != nil {
		s.logger.Error().Err(err).
			Str("order_id", order.OrderID).
			Str("routing_key", event.RoutingKey()).
			Msg("failed to publish settlement event")
	}
}

// matchOrder checks that a notification belongs to order. Amount and
// currency are only compared for successful payments.
func matchOrder(order *model.PaymentOrder, providerName string, n *provider.Notification) error {
	if order.Provider != providerName {
		return fmt.Errorf("%w: order was initiated with %s", model.ErrInvalidSignature, order.Provider)
	}
	if n.Status != model.PaymentStatusCompleted {
		return nil
	}
	if n.Amount != nil && !n.Amount.Round(2).Equal(order.Amount.Round(2)) {
		return fmt.Errorf("%w: amount %s does not match %s", model.ErrInvalidSignature, n.Amount.StringFixed(2), order.Amount.StringFixed(2))
	}
	if n.Currency != "" && !strings.EqualFold(n.Currency, order.Currency) {
		return fmt.Errorf("%w: currency %s does not match %s", model.ErrInvalidSignature, n.Currency, order.Currency)
	}
	return nil
}

// aggregateItems merges snapshot lines that point at the same deal, keeping
// the first unit price seen.
func aggregateItems(items []model.OrderItem) []model.OrderItem {
	index := make(map[uuid.UUID]int, len(items))
	out := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.DealID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.DealID] = len(out)
		out = append(out, item)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
