package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/coursemart-api/api"
	"github.com/sahilchouksey/coursemart-api/config"
	"github.com/sahilchouksey/coursemart-api/database"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/router"
	"github.com/sahilchouksey/coursemart-api/services/cron"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
	"github.com/sahilchouksey/coursemart-api/utils/response"
)

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	if env.IsProduction() {
		log.SetLevel(log.LevelInfo)
	} else {
		log.SetLevel(log.LevelDebug)
	}
	response.SetExposeDetails(!env.IsProduction())

	// Initialize GORM database connection
	store, err := database.StartGORM(env)
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		db := store.DB()
		cronManager = cron.NewCronManager(db, repository.NewGormStore(db), auth.NewBlacklistService(db))
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warnw("failed to start cron jobs", "error", err)
			cronManager = nil
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT))
	app := server.GetEngine()

	if err := router.SetupRoutes(app, store, env); err != nil {
		return err
	}

	// Shut down on SIGINT/SIGTERM so deferred cleanup runs
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("Shutting down server...")
		if err := server.Shutdown(); err != nil {
			log.Errorw("server shutdown failed", "error", err)
		}
	}()

	return server.Run()
}
