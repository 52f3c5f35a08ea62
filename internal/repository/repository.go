package repository

import (
	"context"
	"errors"
	"time"

	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PaymentOrderRepository defines data access for payment orders.
type PaymentOrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts a pending order. A duplicate order id returns model.ErrOrderExists.
	Create(ctx context.Context, order *model.PaymentOrder) error

	// GetByOrderID returns nil when the order does not exist.
	GetByOrderID(ctx context.Context, orderID string) (*model.PaymentOrder, error)

	// LockByOrderID reads the order with a row lock held until tx ends.
	// Returns nil when the order does not exist.
	LockByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*model.PaymentOrder, error)

	// MarkSettled moves a pending order to status. It reports false when
	// the order was no longer pending.
	MarkSettled(ctx context.Context, tx pgx.Tx, orderID string, status model.PaymentStatus, transactionID string, response map[string]string) (bool, error)

	// MarkFulfillmentError settles a pending order outside the failed
	// settlement transaction and records why fulfillment did not happen.
	MarkFulfillmentError(ctx context.Context, orderID string, status model.PaymentStatus, transactionID string, response map[string]string, reason string) (bool, error)
}

// DealRepository defines data access for deals.
type DealRepository interface {
	// ListActive returns deals that are active and not past their end date.
	ListActive(ctx context.Context, limit, offset int) ([]model.Deal, error)

	// GetByID returns nil when the deal does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Deal, error)

	// DecrementStock moves qty units from stock to sold. Returns
	// model.ErrInsufficientStock when fewer than qty units are left.
	DecrementStock(ctx context.Context, tx pgx.Tx, dealID uuid.UUID, qty int) error
}

// CartRepository defines data access for cart items.
type CartRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error)
	ClearByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error)
}

// PurchaseRepository defines data access for the purchase ledger.
type PurchaseRepository interface {
	// CreateBatch inserts purchases, skipping lines already recorded for the
	// same payment order and deal. Returns the number of rows inserted.
	CreateBatch(ctx context.Context, tx pgx.Tx, purchases []model.Purchase) (int, error)

	ListByPaymentOrder(ctx context.Context, orderID string) ([]model.Purchase, error)
}

// LoyaltyRepository defines data access for loyalty balances and the points
// held by unsettled orders.
type LoyaltyRepository interface {
	// GetByUser returns an empty account when the user has none yet.
	// PointsHeld counts unexpired holds.
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.LoyaltyAccount, error)

	// Hold sets points aside for orderID until the given time. Returns
	// model.ErrInsufficientPoints when the balance not held by other orders
	// is too small, and model.ErrOrderExists when another user's order
	// already holds points under orderID.
	Hold(ctx context.Context, userID uuid.UUID, orderID string, points int, until time.Time) error

	// ApplyOrder credits earned points, debits spent points and drops the
	// hold of orderID. The debit is capped at what the balance covers; the
	// number of points actually debited is returned.
	ApplyOrder(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID string, earned, spent int) (int, error)

	// ReleaseHold drops the hold of orderID within tx.
	ReleaseHold(ctx context.Context, tx pgx.Tx, orderID string) (int64, error)

	// CancelHold drops the hold of orderID outside any transaction.
	CancelHold(ctx context.Context, orderID string) (int64, error)
}

// WheelRepository defines data access for wheel-of-surprise discounts.
type WheelRepository interface {
	// GetForUser returns nil when the spin does not exist or belongs to
	// another user.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.WheelDiscount, error)

	// Reserve holds the discount for orderID until the given time. Returns
	// model.ErrWheelUnavailable when it is expired, redeemed or held by
	// another order.
	Reserve(ctx context.Context, id, userID uuid.UUID, orderID string, until time.Time) (*model.WheelDiscount, error)

	// Redeem consumes the discount reserved for orderID.
	Redeem(ctx context.Context, tx pgx.Tx, orderID string) (int64, error)

	// Release drops the reservation held by orderID within tx.
	Release(ctx context.Context, tx pgx.Tx, orderID string) (int64, error)

	// CancelReservation drops the reservation held by orderID outside any
	// transaction.
	CancelReservation(ctx context.Context, orderID string) (int64, error)
}

// executor is satisfied by both the pool and a transaction.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
