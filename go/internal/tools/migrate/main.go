package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/planning-poker/go/internal/dbconfig"
	"github.com/mcdev12/planning-poker/go/internal/poker/room"
)

// SeedRoom is one entry of the optional SEED_FILE.
type SeedRoom struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Apply the schema
	if _, err := pool.Exec(ctx, room.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("schema applied to %s\n", cfg.Database)

	path := os.Getenv("SEED_FILE")
	if path == "" {
		return
	}

	// 3) Seed rooms
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var rooms []SeedRoom
	if err := json.Unmarshal(data, &rooms); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	var inserted, skipped, errs int
	now := time.Now().UTC()
	for _, r := range rooms {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		tag, err := pool.Exec(ctx, `
            INSERT INTO rooms (id, name, created_at, updated_at)
            VALUES ($1, $2, $3, $3)
            ON CONFLICT (id) DO NOTHING
        `, r.ID, r.Name, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting room %s: %v\n", r.ID, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	fmt.Printf("rooms: %d total, %d inserted, %d skipped, %d errors\n", len(rooms), inserted, skipped, errs)
	if errs > 0 {
		os.Exit(1)
	}
}
