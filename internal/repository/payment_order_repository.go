package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"buydeals/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type paymentOrderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentOrderRepository creates a new PostgreSQL-backed payment order repository.
func NewPaymentOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentOrderRepository {
	return &paymentOrderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment_order").Logger(),
	}
}

const paymentOrderColumns = `
	order_id, user_id, provider, amount::text, currency, status, payment_method,
	customer_info, order_items, transaction_id, payment_response, wheel_spin_id,
	points_redeemed, fulfillment_error, created_at, updated_at`

func (r *paymentOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (r *paymentOrderRepository) Create(ctx context.Context, order *model.PaymentOrder) error {
	customer, err := json.Marshal(order.CustomerInfo)
	if err != nil {
		return fmt.Errorf("failed to encode customer info: %w", err)
	}
	items, err := json.Marshal(order.OrderItems)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	query := `
		INSERT INTO payment_orders (
			order_id, user_id, provider, amount, currency, status, payment_method,
			customer_info, order_items, wheel_spin_id, points_redeemed
		)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err = r.pool.QueryRow(ctx, query,
		order.OrderID,
		order.UserID,
		order.Provider,
		order.Amount.StringFixed(2),
		order.Currency,
		string(model.PaymentStatusPending),
		order.PaymentMethod,
		customer,
		items,
		order.WheelSpinID,
		order.PointsRedeemed,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn().Str("order_id", order.OrderID).Msg("payment order already exists")
			return model.ErrOrderExists
		}
		r.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to create payment order")
		return fmt.Errorf("failed to create payment order: %w", err)
	}

	order.Status = model.PaymentStatusPending
	r.logger.Debug().Str("order_id", order.OrderID).Msg("payment order created")
	return nil
}

func (r *paymentOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	query := `SELECT ` + paymentOrderColumns + ` FROM payment_orders WHERE order_id = $1`

	order, err := scanPaymentOrder(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", orderID).Msg("payment order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to query payment order")
		return nil, fmt.Errorf("failed to query payment order: %w", err)
	}
	return order, nil
}

func (r *paymentOrderRepository) LockByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*model.PaymentOrder, error) {
	query := `SELECT ` + paymentOrderColumns + ` FROM payment_orders WHERE order_id = $1 FOR UPDATE`

	order, err := scanPaymentOrder(tx.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to lock payment order")
		return nil, fmt.Errorf("failed to lock payment order: %w", err)
	}
	return order, nil
}

func (r *paymentOrderRepository) MarkSettled(ctx context.Context, tx pgx.Tx, orderID string, status model.PaymentStatus, transactionID string, response map[string]string) (bool, error) {
	return r.settle(ctx, tx, orderID, status, transactionID, response, nil)
}

func (r *paymentOrderRepository) MarkFulfillmentError(ctx context.Context, orderID string, status model.PaymentStatus, transactionID string, response map[string]string, reason string) (bool, error) {
	return r.settle(ctx, r.pool, orderID, status, transactionID, response, &reason)
}

func (r *paymentOrderRepository) settle(ctx context.Context, exec executor, orderID string, status model.PaymentStatus, transactionID string, response map[string]string, fulfillmentError *string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("cannot settle order %s to non-terminal status %q", orderID, status)
	}

	raw, err := json.Marshal(response)
	if err != nil {
		return false, fmt.Errorf("failed to encode provider response: %w", err)
	}

	query := `
		UPDATE payment_orders
		SET status = $2, transaction_id = $3, payment_response = $4,
			fulfillment_error = $5, updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending'
	`

	tag, err := exec.Exec(ctx, query, orderID, string(status), transactionID, raw, fulfillmentError)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to settle payment order")
		return false, fmt.Errorf("failed to settle payment order: %w", err)
	}

	updated := tag.RowsAffected() == 1
	r.logger.Debug().
		Str("order_id", orderID).
		Str("status", string(status)).
		Bool("updated", updated).
		Msg("payment order settlement written")
	return updated, nil
}

func scanPaymentOrder(row pgx.Row) (*model.PaymentOrder, error) {
	var (
		o        model.PaymentOrder
		amount   string
		status   string
		customer []byte
		items    []byte
		response []byte
	)

	err := row.Scan(
		&o.OrderID,
		&o.UserID,
		&o.Provider,
		&amount,
		&o.Currency,
		&status,
		&o.PaymentMethod,
		&customer,
		&items,
		&o.TransactionID,
		&response,
		&o.WheelSpinID,
		&o.PointsRedeemed,
		&o.FulfillmentError,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = model.PaymentStatus(status)
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	if err := json.Unmarshal(customer, &o.CustomerInfo); err != nil {
		return nil, fmt.Errorf("invalid stored customer info: %w", err)
	}
	if err := json.Unmarshal(items, &o.OrderItems); err != nil {
		return nil, fmt.Errorf("invalid stored order items: %w", err)
	}
	if len(response) > 0 {
		if err := json.Unmarshal(response, &o.PaymentResponse); err != nil {
			return nil, fmt.Errorf("invalid stored provider response: %w", err)
		}
	}
	return &o, nil
}
