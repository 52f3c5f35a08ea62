package repository

import (
	"context"
	"fmt"

	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// ListByUser returns the user's cart with each line priced at the live deal
// price. Lines of deals that ended or were withdrawn are returned with
// OnSale false.
func (r *cartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	query := `
		SELECT c.id, c.user_id, c.deal_id, d.title, c.quantity, d.deal_price::text,
			d.stock_quantity, d.is_active AND (d.ends_at IS NULL OR d.ends_at > NOW())
		FROM cart_items c
		JOIN deals d ON d.id = c.deal_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var (
			line  model.CartLine
			price string
		)
		if err := rows.Scan(&line.ID, &line.UserID, &line.DealID, &line.Title, &line.Quantity, &price, &line.StockQuantity, &line.OnSale); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart row")
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		if line.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart rows")
		return nil, fmt.Errorf("error iterating cart: %w", err)
	}

	return lines, nil
}

// ClearByUser deletes every cart line of the user.
func (r *cartRepository) ClearByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to clear cart")
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	return tag.RowsAffected(), nil
}
