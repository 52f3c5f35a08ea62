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
)

type loyaltyRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewLoyaltyRepository creates a new PostgreSQL-backed loyalty repository.
func NewLoyaltyRepository(pool *pgxpool.Pool, logger zerolog.Logger) LoyaltyRepository {
	return &loyaltyRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "loyalty").Logger(),
	}
}

func (r *loyaltyRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.LoyaltyAccount, error) {
	query := `
		SELECT a.user_id, a.points_balance, a.lifetime_points_earned, a.lifetime_points_spent,
			COALESCE((
				SELECT SUM(h.points) FROM loyalty_holds h
				WHERE h.user_id = a.user_id AND h.expires_at > NOW()
			), 0)
		FROM loyalty_accounts a
		WHERE a.user_id = $1
	`

	var a model.LoyaltyAccount
	err := r.pool.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.PointsBalance, &a.LifetimePointsEarned, &a.LifetimePointsSpent, &a.PointsHeld)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.LoyaltyAccount{UserID: userID}, nil
		}
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to query loyalty account")
		return nil, fmt.Errorf("failed to query loyalty account: %w", err)
	}
	return &a, nil
}

// Hold locks the account row so concurrent holds of one user are checked
// against each other's committed holds.
func (r *loyaltyRepository) Hold(ctx context.Context, userID uuid.UUID, orderID string, points int, until time.Time) error {
	if points <= 0 {
		return fmt.Errorf("%w: held points must be positive", model.ErrInvalidRequest)
	}

	logger := r.logger.With().
		Str("user_id", userID.String()).
		Str("order_id", orderID).
		Logger()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Error().Err(err).Msg("failed to rollback transaction")
		}
	}()

	var balance int
	err = tx.QueryRow(ctx, `SELECT points_balance FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: no loyalty account", model.ErrInsufficientPoints)
		}
		logger.Error().Err(err).Msg("failed to lock loyalty account")
		return fmt.Errorf("failed to lock loyalty account: %w", err)
	}

	var held int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM loyalty_holds
		WHERE user_id = $1 AND order_id <> $2 AND expires_at > NOW()
	`, userID, orderID).Scan(&held)
	if err != nil {
		logger.Error().Err(err).Msg("failed to sum loyalty holds")
		return fmt.Errorf("failed to sum loyalty holds: %w", err)
	}

	if balance-held < points {
		logger.Warn().
			Int("balance", balance).
			Int("held", held).
			Int("requested", points).
			Msg("insufficient loyalty points to hold")
		return fmt.Errorf("%w: %d of %d points are free", model.ErrInsufficientPoints, max(balance-held, 0), balance)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO loyalty_holds (order_id, user_id, points, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO UPDATE
		SET points = EXCLUDED.points, expires_at = EXCLUDED.expires_at
		WHERE loyalty_holds.user_id = EXCLUDED.user_id
	`, orderID, userID, points, until)
	if err != nil {
		logger.Error().Err(err).Msg("failed to hold loyalty points")
		return fmt.Errorf("failed to hold loyalty points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderExists
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to commit loyalty hold")
		return fmt.Errorf("failed to commit loyalty hold: %w", err)
	}

	logger.Debug().Int("points", points).Time("until", until).Msg("loyalty points held")
	return nil
}

func (r *loyaltyRepository) ApplyOrder(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID string, earned, spent int) (int, error) {
	if earned < 0 || spent < 0 {
		return 0, fmt.Errorf("%w: point movements cannot be negative", model.ErrInvalidRequest)
	}

	if _, err := r.release(ctx, tx, orderID); err != nil {
		return 0, err
	}
	if earned == 0 && spent == 0 {
		return 0, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO loyalty_accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to open loyalty account")
		return 0, fmt.Errorf("failed to open loyalty account: %w", err)
	}

	var balance int
	if err := tx.QueryRow(ctx, `SELECT points_balance FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to lock loyalty account")
		return 0, fmt.Errorf("failed to lock loyalty account: %w", err)
	}
	debit := min(spent, balance+earned)

	query := `
		UPDATE loyalty_accounts
		SET points_balance = points_balance + $2 - $3,
			lifetime_points_earned = lifetime_points_earned + $2,
			lifetime_points_spent = lifetime_points_spent + $3,
			updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := tx.Exec(ctx, query, userID, earned, debit); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to apply loyalty points")
		return 0, fmt.Errorf("failed to apply loyalty points: %w", err)
	}

	r.logger.Debug().
		Str("user_id", userID.String()).
		Str("order_id", orderID).
		Int("earned", earned).
		Int("spent", debit).
		Msg("loyalty points applied")
	return debit, nil
}

func (r *loyaltyRepository) ReleaseHold(ctx context.Context, tx pgx.Tx, orderID string) (int64, error) {
	return r.release(ctx, tx, orderID)
}

func (r *loyaltyRepository) CancelHold(ctx context.Context, orderID string) (int64, error) {
	return r.release(ctx, r.pool, orderID)
}

func (r *loyaltyRepository) release(ctx context.Context, exec executor, orderID string) (int64, error) {
	tag, err := exec.Exec(ctx, `DELETE FROM loyalty_holds WHERE order_id = $1`, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to release loyalty hold")
		return 0, fmt.Errorf("failed to release loyalty hold: %w", err)
	}
	return tag.RowsAffected(), nil
}
