package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"buydeals/internal/config"
	"buydeals/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container with the service schema
// applied.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	// Sized for the concurrent settlement tests.
	dbConfig := config.DatabaseConfig{
		MaxConnections:  20,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPoolFromConnString(ctx, connStr, dbConfig, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedDeal inserts an active deal and returns its id.
func SeedDeal(t *testing.T, pool *pgxpool.Pool, title, price string, stock int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		"INSERT INTO deals (id, title, deal_price, stock_quantity) VALUES ($1, $2, $3::text::numeric, $4)",
		id, title, price, stock,
	)
	if err != nil {
		t.Fatalf("failed to seed deal %s: %v", title, err)
	}
	return id
}

// SeedCartItem puts qty units of a deal into the user's cart.
func SeedCartItem(t *testing.T, pool *pgxpool.Pool, userID, dealID uuid.UUID, qty int) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		"INSERT INTO cart_items (user_id, deal_id, quantity) VALUES ($1, $2, $3)",
		userID, dealID, qty,
	)
	if err != nil {
		t.Fatalf("failed to seed cart item: %v", err)
	}
}

// SeedWheel grants the user an unredeemed wheel discount.
func SeedWheel(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, percent string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		"INSERT INTO wheel_spins (id, user_id, discount_percentage, expires_at) VALUES ($1, $2, $3::text::numeric, NOW() + INTERVAL '1 day')",
		id, userID, percent,
	)
	if err != nil {
		t.Fatalf("failed to seed wheel spin: %v", err)
	}
	return id
}

// SeedLoyalty gives the user a loyalty balance.
func SeedLoyalty(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, points int) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		"INSERT INTO loyalty_accounts (user_id, points_balance, lifetime_points_earned) VALUES ($1, $2, $2)",
		userID, points,
	)
	if err != nil {
		t.Fatalf("failed to seed loyalty account: %v", err)
	}
}

// EndDeal closes a deal by moving its end into the past.
func EndDeal(t *testing.T, pool *pgxpool.Pool, dealID uuid.UUID) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		"UPDATE deals SET ends_at = NOW() - INTERVAL '1 minute' WHERE id = $1", dealID,
	)
	if err != nil {
		t.Fatalf("failed to end deal: %v", err)
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"purchases", "payment_orders", "cart_items", "wheel_spins", "loyalty_holds", "loyalty_accounts", "deals"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// dealStock returns the stock and sold counters of a deal.
func dealStock(t *testing.T, pool *pgxpool.Pool, dealID uuid.UUID) (stock, sold int) {
	t.Helper()

	err := pool.QueryRow(context.Background(),
		"SELECT stock_quantity, sold_quantity FROM deals WHERE id = $1", dealID,
	).Scan(&stock, &sold)
	if err != nil {
		t.Fatalf("failed to read deal stock: %v", err)
	}
	return stock, sold
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()

	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}
