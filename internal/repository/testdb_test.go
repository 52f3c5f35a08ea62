package repository

import (
	"context"
	"testing"
	"time"

	"buydeals/internal/database"
	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer with the service schema
// applied and returns a connection pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, pool, zerolog.Nop()))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func seedDeal(t *testing.T, pool *pgxpool.Pool, title, price string, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO deals (id, title, deal_price, stock_quantity) VALUES ($1, $2, $3::text::numeric, $4)`,
		id, title, price, stock)
	require.NoError(t, err)
	return id
}

func seedCartItem(t *testing.T, pool *pgxpool.Pool, userID, dealID uuid.UUID, qty int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO cart_items (user_id, deal_id, quantity) VALUES ($1, $2, $3)`,
		userID, dealID, qty)
	require.NoError(t, err)
}

func seedWheel(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, pct string, expiresAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO wheel_spins (id, user_id, discount_percentage, expires_at) VALUES ($1, $2, $3::text::numeric, $4)`,
		id, userID, pct, expiresAt)
	require.NoError(t, err)
	return id
}

func seedPendingOrder(t *testing.T, repo PaymentOrderRepository, orderID string, userID, dealID uuid.UUID) *model.PaymentOrder {
	t.Helper()
	order := &model.PaymentOrder{
		OrderID:  orderID,
		UserID:   userID,
		Provider: "mypos",
		Amount:   decimal.RequireFromString("40.00"),
		Currency: "EUR",
		OrderItems: []model.OrderItem{
			{DealID: dealID, Title: "Spa weekend", Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
		},
		CustomerInfo: model.CustomerInfo{FirstName: "Maria", Email: "maria@example.com"},
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}
