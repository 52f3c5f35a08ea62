// Command migrate applies the database schema and can seed demo deals.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"buydeals/internal/config"
	"buydeals/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// demoDeals are inserted by -seed when the deals table is empty.
var demoDeals = []struct {
	title string
	price string
	stock int
}{
	{"Spa weekend for two", "149.00", 20},
	{"Three-course dinner", "45.50", 50},
	{"Hot air balloon flight", "189.99", 5},
	{"Cinema night, 2 tickets", "14.00", 200},
}

func main() {
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (defaults to DB_* settings)")
	seed := flag.Bool("seed", false, "insert demo deals into an empty database")
	flag.Parse()

	if err := run(*dsn, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dsn string, seed bool) error {
	cfg := config.DatabaseConfigFromEnv()
	if dsn == "" {
		dsn = cfg.ConnectionString()
	}
	logger := config.NewLogger(config.LoggerConfig{Level: "info", Format: "console"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPoolFromConnString(ctx, dsn, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	if seed {
		return seedDeals(ctx, pool)
	}
	return nil
}

func seedDeals(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM deals").Scan(&count); err != nil {
		return fmt.Errorf("failed to count deals: %w", err)
	}
	if count > 0 {
		fmt.Printf("Skipping seed, %d deals already present\n", count)
		return nil
	}

	for _, d := range demoDeals {
		_, err := pool.Exec(ctx,
			"INSERT INTO deals (title, deal_price, stock_quantity, ends_at) VALUES ($1, $2::text::numeric, $3, NOW() + INTERVAL '30 days')",
			d.title, d.price, d.stock,
		)
		if err != nil {
			return fmt.Errorf("failed to seed deal %q: %w", d.title, err)
		}
	}

	fmt.Printf("Seeded %d deals\n", len(demoDeals))
	return nil
}
