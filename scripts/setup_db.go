package main

import (
	"context"
	"fmt"
	"log"

	"drive-service/internal/config"
	"drive-service/internal/repository/postgres"

	"github.com/joho/godotenv"
)

const tableExistsQuery = `SELECT EXISTS (
	SELECT FROM information_schema.tables
	WHERE table_schema = 'public'
	AND table_name = $1
)`

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	fmt.Println("=== Setting Up Database ===")
	fmt.Println()

	db, err := postgres.New(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	fmt.Println("Applying schema...")
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("❌ Failed to apply schema: %v", err)
	}

	fmt.Println("✅ Schema applied successfully")
	fmt.Println()

	fmt.Println("=== Verifying Tables ===")
	tables := []string{"users", "blocks", "audit_events"}

	for _, table := range tables {
		var exists bool
		if err := db.Pool.QueryRow(ctx, tableExistsQuery, table).Scan(&exists); err != nil {
			fmt.Printf("❌ Error checking table '%s': %v\n", table, err)
			continue
		}

		if exists {
			fmt.Printf("✅ Table '%s' created\n", table)
		} else {
			fmt.Printf("❌ Table '%s' NOT created\n", table)
		}
	}

	fmt.Println()
	fmt.Println("=== Database Setup Complete ===")
	fmt.Println()
	fmt.Println("Next: Run 'go run main.go' to start the server")
}
