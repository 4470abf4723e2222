// migrate_gorm.go - Run this file to apply GORM migrations
// Usage: go run migrate_gorm.go

//go:build ignore

package main

import (
	"context"
	"log"
	"time"

	"github.com/sahilchouksey/coursemart-api/config"
	"github.com/sahilchouksey/coursemart-api/database"
)

func main() {
	log.Println("=== GORM Migration ===")

	if err := config.LoadENV(); err != nil {
		log.Fatal("Failed to load environment variables:", err)
	}

	env, err := config.Get()
	if err != nil {
		log.Fatal("Failed to read configuration:", err)
	}

	store, err := database.StartGORM(env)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.HealthCheck(ctx); err != nil {
		log.Fatal("Database health check failed:", err)
	}

	log.Println("✅ All migrations completed successfully!")
	log.Println("Tables:")
	for _, table := range []string{"users", "otp_challenges", "courses", "enrollments", "payments", "jwt_token_blacklist", "cron_job_logs"} {
		log.Println("  -", table)
	}
}
