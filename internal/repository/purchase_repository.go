package repository

import (
	"context"
	"fmt"

	"buydeals/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type purchaseRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPurchaseRepository creates a new PostgreSQL-backed purchase repository.
func NewPurchaseRepository(pool *pgxpool.Pool, logger zerolog.Logger) PurchaseRepository {
	return &purchaseRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "purchase").Logger(),
	}
}

func (r *purchaseRepository) CreateBatch(ctx context.Context, tx pgx.Tx, purchases []model.Purchase) (int, error) {
	if len(purchases) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO purchases (id, user_id, deal_id, quantity, purchase_price, status, payment_order_id)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)
		ON CONFLICT (payment_order_id, deal_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, p := range purchases {
		batch.Queue(query, p.ID, p.UserID, p.DealID, p.Quantity, p.PurchasePrice.StringFixed(2), p.Status, p.PaymentOrderID)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for i := 0; i < len(purchases); i++ {
		tag, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("payment_order_id", purchases[i].PaymentOrderID).
				Str("deal_id", purchases[i].DealID.String()).
				Msg("failed to create purchase")
			return 0, fmt.Errorf("failed to create purchase: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	r.logger.Debug().
		Int("requested", len(purchases)).
		Int("inserted", inserted).
		Msg("purchases written")

	return inserted, nil
}

func (r *purchaseRepository) ListByPaymentOrder(ctx context.Context, orderID string) ([]model.Purchase, error) {
	query := `
		SELECT id, user_id, deal_id, quantity, purchase_price::text, status, payment_order_id, created_at
		FROM purchases
		WHERE payment_order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_order_id", orderID).Msg("failed to query purchases")
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []model.Purchase{}
	for rows.Next() {
		var (
			p     model.Purchase
			price string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.DealID, &p.Quantity, &price, &p.Status, &p.PaymentOrderID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if p.PurchasePrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
		}
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}
	return purchases, nil
}
