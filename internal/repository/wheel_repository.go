package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type wheelRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewWheelRepository creates a new PostgreSQL-backed wheel discount repository.
func NewWheelRepository(pool *pgxpool.Pool, logger zerolog.Logger) WheelRepository {
	return &wheelRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "wheel").Logger(),
	}
}

const wheelColumns = `id, user_id, discount_percentage::text, is_redeemed, expires_at, reserved_order_id, reserved_until`

func (r *wheelRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.WheelDiscount, error) {
	query := `SELECT ` + wheelColumns + ` FROM wheel_spins WHERE id = $1 AND user_id = $2`

	w, err := scanWheel(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("wheel_spin_id", id.String()).Msg("failed to query wheel spin")
		return nil, fmt.Errorf("failed to query wheel spin: %w", err)
	}
	return w, nil
}

// Reserve succeeds when the spin is unredeemed, unexpired and either free,
// held by a lapsed reservation, or already held by the same order.
func (r *wheelRepository) Reserve(ctx context.Context, id, userID uuid.UUID, orderID string, until time.Time) (*model.WheelDiscount, error) {
	query := `
		UPDATE wheel_spins
		SET reserved_order_id = $3, reserved_until = $4
		WHERE id = $1 AND user_id = $2
			AND NOT is_redeemed
			AND expires_at > NOW()
			AND (reserved_order_id IS NULL OR reserved_until < NOW() OR reserved_order_id = $3)
		RETURNING ` + wheelColumns

	w, err := scanWheel(r.pool.QueryRow(ctx, query, id, userID, orderID, until))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().
				Str("wheel_spin_id", id.String()).
				Str("order_id", orderID).
				Msg("wheel discount unavailable")
			return nil, model.ErrWheelUnavailable
		}
		r.logger.Error().Err(err).Str("wheel_spin_id", id.String()).Msg("failed to reserve wheel discount")
		return nil, fmt.Errorf("failed to reserve wheel discount: %w", err)
	}
	return w, nil
}

func (r *wheelRepository) Redeem(ctx context.Context, tx pgx.Tx, orderID string) (int64, error) {
	query := `
		UPDATE wheel_spins
		SET is_redeemed = TRUE, redeemed_at = NOW(), reserved_until = NULL
		WHERE reserved_order_id = $1 AND NOT is_redeemed
	`

	tag, err := tx.Exec(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to redeem wheel discount")
		return 0, fmt.Errorf("failed to redeem wheel discount: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *wheelRepository) Release(ctx context.Context, tx pgx.Tx, orderID string) (int64, error) {
	return r.release(ctx, tx, orderID)
}

func (r *wheelRepository) CancelReservation(ctx context.Context, orderID string) (int64, error) {
	return r.release(ctx, r.pool, orderID)
}

func (r *wheelRepository) release(ctx context.Context, exec executor, orderID string) (int64, error) {
	query := `
		UPDATE wheel_spins
		SET reserved_order_id = NULL, reserved_until = NULL
		WHERE reserved_order_id = $1 AND NOT is_redeemed
	`

	tag, err := exec.Exec(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to release wheel discount")
		return 0, fmt.Errorf("failed to release wheel discount: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanWheel(row pgx.Row) (*model.WheelDiscount, error) {
	var (
		w   model.WheelDiscount
		pct string
	)
	if err := row.Scan(&w.ID, &w.UserID, &pct, &w.IsRedeemed, &w.ExpiresAt, &w.ReservedOrderID, &w.ReservedUntil); err != nil {
		return nil, err
	}
	var err error
	if w.DiscountPercentage, err = decimal.NewFromString(pct); err != nil {
		return nil, fmt.Errorf("invalid stored discount %q: %w", pct, err)
	}
	return &w, nil
}
