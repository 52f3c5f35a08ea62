package repository

import (
	"context"
	"errors"
	"fmt"

	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// dealRepository implements the DealRepository interface using PostgreSQL.
type dealRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDealRepository creates a new PostgreSQL-backed deal repository.
func NewDealRepository(pool *pgxpool.Pool, logger zerolog.Logger) DealRepository {
	return &dealRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "deal").Logger(),
	}
}

const dealColumns = `id, title, deal_price::text, stock_quantity, sold_quantity, is_active, ends_at, created_at`

// ListActive retrieves active deals with pagination support.
func (r *dealRepository) ListActive(ctx context.Context, limit, offset int) ([]model.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE is_active AND (ends_at IS NULL OR ends_at > NOW())
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query deals")
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	deals := []model.Deal{}
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan deal row")
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, *d)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating deal rows")
		return nil, fmt.Errorf("error iterating deals: %w", err)
	}

	return deals, nil
}

// GetByID retrieves a single deal by its ID.
func (r *dealRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	d, err := scanDeal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("deal_id", id.String()).Msg("deal not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("deal_id", id.String()).Msg("failed to query deal")
		return nil, fmt.Errorf("failed to query deal: %w", err)
	}
	return d, nil
}

// DecrementStock is a single conditional update, so concurrent settlements
// can never oversell or lose an update.
func (r *dealRepository) DecrementStock(ctx context.Context, tx pgx.Tx, dealID uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: stock decrement must be positive", model.ErrInvalidRequest)
	}

	query := `
		UPDATE deals
		SET stock_quantity = stock_quantity - $2,
			sold_quantity = sold_quantity + $2,
			updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
	`

	tag, err := tx.Exec(ctx, query, dealID, qty)
	if err != nil {
		r.logger.Error().Err(err).Str("deal_id", dealID.String()).Msg("failed to decrement stock")
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("deal_id", dealID.String()).
			Int("quantity", qty).
			Msg("insufficient stock")
		return fmt.Errorf("%w: deal %s", model.ErrInsufficientStock, dealID)
	}
	return nil
}

func scanDeal(row pgx.Row) (*model.Deal, error) {
	var (
		d     model.Deal
		price string
	)
	if err := row.Scan(&d.ID, &d.Title, &price, &d.StockQuantity, &d.SoldQuantity, &d.IsActive, &d.EndsAt, &d.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if d.DealPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	return &d, nil
}
