// promote_tier moves a provider between tiers. Tier-A providers get early
// visibility during staged broadcasts; providers cannot set their own tier,
// so ops runs this against the database directly.
//
//	go run ./cmd/adminutil/promote_tier -provider <uuid> -tier TIER_A
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	provider := flag.String("provider", "", "provider user id to retier")
	tier := flag.String("tier", "TIER_A", "target tier (TIER_A or TIER_B)")
	flag.Parse()

	if *tier != "TIER_A" && *tier != "TIER_B" {
		log.Fatalf("invalid tier %q", *tier)
	}
	providerID, err := uuid.Parse(*provider)
	if err != nil {
		log.Fatalf("usage: promote_tier -provider <uuid> -tier TIER_A")
	}

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	tag, err := pool.Exec(ctx,
		`UPDATE providers SET tier = $1, updated_at = NOW() WHERE user_id = $2`,
		*tier, providerID)
	if err != nil {
		log.Fatalf("update tier: %v", err)
	}
	if tag.RowsAffected() == 0 {
		log.Fatalf("no provider with id %s", providerID)
	}
	fmt.Printf("provider %s is now %s\n", providerID, *tier)
}
