// The migrate binary applies the SQL files under migrations/ in
// lexicographic order, tracking applied files in schema_migrations.
package main

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/inkwell-hq/inkwell/internal/config"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		log.Fatalf("Failed to create migrations table: %v", err)
	}

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(files)

	applied := 0
	for _, file := range files {
		name := filepath.Base(file)

		var exists bool
		if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`,
			name).Scan(&exists); err != nil {
			log.Fatalf("Failed to check migration %s: %v", name, err)
		}
		if exists {
			continue
		}

		stmt, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			log.Fatalf("Failed to begin transaction for %s: %v", name, err)
		}
		if _, err := tx.Exec(string(stmt)); err != nil {
			tx.Rollback()
			log.Fatalf("Migration %s failed: %v", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, $2)`,
			name, time.Now()); err != nil {
			tx.Rollback()
			log.Fatalf("Failed to record migration %s: %v", name, err)
		}
		if err := tx.Commit(); err != nil {
			log.Fatalf("Failed to commit %s: %v", name, err)
		}

		log.Printf("Applied %s", name)
		applied++
	}

	if applied == 0 {
		log.Println("No pending migrations")
	} else {
		log.Printf("Applied %d migration(s)", applied)
	}
}
