package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/sahilchouksey/coursemart-api/config"
	"github.com/sahilchouksey/coursemart-api/database"
)

func main() {
	if err := config.LoadENV(); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	env, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	store, err := database.StartGORM(env)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("CourseMart - Database Seeding")
	fmt.Println(separator)
	fmt.Println()

	if err := database.RunSeeds(store.DB()); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	fmt.Println()
	fmt.Println(separator)
	fmt.Println("🎉 Seeding completed successfully!")
	fmt.Println(separator)
	fmt.Println()
	fmt.Println("Admin user is created from ADMIN_EMAIL and ADMIN_PASSWORD.")
	fmt.Println("Demo catalogue is created from DEMO_INSTRUCTOR_EMAIL and DEMO_INSTRUCTOR_PASSWORD.")
	fmt.Println("Unset variables skip the corresponding step.")
}
