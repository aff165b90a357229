package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ruralpay/pointledger/internal/config"
	"github.com/ruralpay/pointledger/internal/database"
	"github.com/ruralpay/pointledger/internal/models"
	pgstore "github.com/ruralpay/pointledger/internal/store/postgres"
)

func main() {
	accounts := flag.Int("accounts", 1000, "Number of accounts to seed (ids 1..N)")
	initial := flag.Int64("point", 5000, "Initial balance for each seeded account")
	flag.Parse()

	if *initial < models.ZeroPoint || *initial > models.MaxPoint {
		log.Fatalf("Initial balance must be between %d and %d", models.ZeroPoint, models.MaxPoint)
	}

	if _, err := config.Load(".env"); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, database.GetConfig().URL())
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	log.Println("--- Seeding Database ---")

	if _, err := conn.Exec(ctx, pgstore.Schema); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}

	var count int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM account_points").Scan(&count); err != nil {
		log.Fatalf("Count failed: %v", err)
	}
	if count > 0 {
		log.Printf("Database already has %d accounts. Skipping.", count)
		return
	}

	log.Printf("Generating %d accounts...", *accounts)
	now := time.Now()
	rows := make([][]any, 0, *accounts)
	for i := 1; i <= *accounts; i++ {
		rows = append(rows, []any{int64(i), *initial, now})
	}

	copyCount, err := conn.CopyFrom(
		ctx,
		pgx.Identifier{"account_points"},
		[]string{"id", "point", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatalf("Bulk insert failed: %v", err)
	}

	log.Printf("Successfully seeded %d accounts.", copyCount)
}
