package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sahilchouksey/coursemart-api/config"
	"github.com/sahilchouksey/coursemart-api/database"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/services/cron"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
	"gorm.io/gorm"
)

func main() {
	run := flag.String("run", "", "run a maintenance job once ("+strings.Join([]string{cron.JobCleanupExpiredOTP, cron.JobCleanupBlacklist, cron.JobAbandonStaleOrders}, ", ")+")")
	limit := flag.Int("limit", 20, "number of recent job runs to show")
	flag.Parse()

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
	db := store.DB()

	if *run != "" {
		manager := cron.NewCronManager(db, repository.NewGormStore(db), auth.NewBlacklistService(db))
		entry, err := manager.RunNow(*run)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Printf("Ran %s: %s, %d rows affected in %dms\n", entry.JobName, entry.Status, entry.Affected, entry.Duration)
		if entry.ErrorMsg != "" {
			fmt.Printf("   Error: %s\n", entry.ErrorMsg)
		}
		fmt.Println()
	}

	printJobRuns(db, *limit)
	printPaymentSummary(db)
}

func printJobRuns(db *gorm.DB, limit int) {
	fmt.Println("========================================")
	fmt.Println("CRON JOB RUNS")
	fmt.Println("========================================")

	var runs []model.CronJobLog
	if err := db.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		log.Fatalf("Failed to fetch job runs: %v", err)
	}

	if len(runs) == 0 {
		fmt.Println("\n❌ No job runs recorded yet")
		return
	}

	fmt.Printf("\n📋 Last %d job runs:\n\n", len(runs))
	for _, r := range runs {
		icon := "⏳"
		switch r.Status {
		case model.CronJobCompleted:
			icon = "✅"
		case model.CronJobFailed:
			icon = "❌"
		}
		fmt.Printf("%s %-26s %s  affected=%-5d %dms\n", icon, r.JobName, r.StartedAt.Format(time.RFC3339), r.Affected, r.Duration)
		if r.ErrorMsg != "" {
			fmt.Printf("   Error: %s\n", r.ErrorMsg)
		}
	}
}

func printPaymentSummary(db *gorm.DB) {
	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("PAYMENTS BY STATUS")
	fmt.Println("========================================")

	var rows []struct {
		Status model.PaymentStatus
		Count  int64
	}
	if err := db.Model(&model.Payment{}).Select("status, count(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		log.Fatalf("Failed to summarize payments: %v", err)
	}
	for _, r := range rows {
		fmt.Printf("  %-10s %d\n", r.Status, r.Count)
	}

	var stale int64
	cutoff := time.Now().Add(-cron.StalePaymentAge)
	if err := db.Model(&model.Payment{}).Where("status = ? AND updated_at < ?", model.PaymentStatusPending, cutoff).Count(&stale).Error; err != nil {
		log.Fatalf("Failed to count stale payments: %v", err)
	}
	if stale > 0 {
		fmt.Printf("\n⚠️  %d PENDING payments older than %s (run -run %s)\n", stale, cron.StalePaymentAge, cron.JobAbandonStaleOrders)
	}
}
