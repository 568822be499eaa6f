package main

import (
	"database/sql"
	"flag"
	"log"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-bookstore/internal/config"
	"ms-bookstore/internal/database/migrations"
)

// Standalone migration tool: `migrate -dir ./migrations up|down|to <version>`.
func main() {
	dir := flag.String("dir", "./migrations", "directory containing migration files")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	runner := migrations.NewRunner(bunDB, migrations.Options{MigrationsDir: *dir})
	defer runner.Close()

	command := flag.Arg(0)
	switch command {
	case "", "up":
		if err := runner.Up(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("✅ Migrations applied")
	case "down":
		if err := runner.Down(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("✅ Migrations rolled back")
	case "to":
		version, err := strconv.ParseUint(flag.Arg(1), 10, 32)
		if err != nil {
			log.Fatalf("Invalid version %q: %v", flag.Arg(1), err)
		}
		if err := runner.To(uint(version)); err != nil {
			log.Fatalf("Migration to version %d failed: %v", version, err)
		}
		log.Printf("✅ Migrated to version %d", version)
	default:
		log.Fatalf("Unknown command %q (expected up, down or to)", command)
	}
}
