package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TokenCleaner purges expired entries from the token blacklist
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron   *cron.Cron
	db     *gorm.DB
	store  repository.Store
	tokens TokenCleaner
	now    func() time.Time
}

// NewCronManager creates a new cron manager. A nil db disables the job log table.
func NewCronManager(db *gorm.DB, store repository.Store, tokens TokenCleaner) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:   c,
		db:     db,
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Info("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Info("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	log.Info("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info("Cron jobs stopped")
}

// job is a unit of maintenance work returning the number of rows it touched
type job func(ctx context.Context) (int64, error)

type scheduledJob struct {
	spec string
	name string
	run  job
}

func (m *CronManager) jobs() []scheduledJob {
	return []scheduledJob{
		// Every 15 minutes: drop OTP challenges that expired over an hour ago
		{"0 */15 * * * *", JobCleanupExpiredOTP, m.CleanupExpiredChallenges},
		// Every hour: purge expired blacklist entries
		{"0 0 * * * *", JobCleanupBlacklist, m.CleanupTokenBlacklist},
		// Every hour at :30: fail orders nobody captured for a day
		{"0 30 * * * *", JobAbandonStaleOrders, m.AbandonStalePayments},
	}
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	schedules := m.jobs()
	for _, s := range schedules {
		s := s
		if _, err := m.cron.AddFunc(s.spec, func() { m.runJob(s.name, s.run) }); err != nil {
			return err
		}
	}

	log.Infow("All cron jobs registered successfully", "count", len(schedules))
	return nil
}

// JobNames lists the registered job names in schedule order
func (m *CronManager) JobNames() []string {
	var names []string
	for _, s := range m.jobs() {
		names = append(names, s.name)
	}
	return names
}

// RunNow executes a job synchronously outside its schedule and records it like a scheduled run
func (m *CronManager) RunNow(name string) (*model.CronJobLog, error) {
	for _, s := range m.jobs() {
		if s.name == name {
			return m.runJob(s.name, s.run), nil
		}
	}
	return nil, fmt.Errorf("unknown job %q", name)
}

// runJob executes a job with a timeout and records the run in cron_job_logs
func (m *CronManager) runJob(name string, run job) *model.CronJobLog {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	entry := m.logJobStart(name)
	affected, err := run(ctx)
	if err != nil {
		m.logJobError(entry, err)
		return entry
	}
	m.logJobComplete(entry, affected)
	return entry
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) *model.CronJobLog {
	log.Infow("[CRON] Starting job", "job", jobName)

	entry := &model.CronJobLog{
		JobName:   jobName,
		Status:    model.CronJobRunning,
		StartedAt: m.now(),
		Metadata:  datatypes.JSON("{}"),
	}
	if m.db != nil {
		if err := m.db.Create(entry).Error; err != nil {
			log.Warnw("[CRON] Failed to record job start", "job", jobName, "error", err)
		}
	}
	return entry
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(entry *model.CronJobLog, affected int64) {
	finished := m.now()
	entry.Status = model.CronJobCompleted
	entry.CompletedAt = &finished
	entry.Duration = finished.Sub(entry.StartedAt).Milliseconds()
	entry.Affected = affected

	log.Infow("[CRON] Completed job", "job", entry.JobName, "affected", affected, "duration_ms", entry.Duration)
	m.saveEntry(entry)
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(entry *model.CronJobLog, err error) {
	finished := m.now()
	entry.Status = model.CronJobFailed
	entry.CompletedAt = &finished
	entry.Duration = finished.Sub(entry.StartedAt).Milliseconds()
	entry.ErrorMsg = err.Error()

	log.Errorw("[CRON] Error in job", "job", entry.JobName, "error", err)
	m.saveEntry(entry)
}

func (m *CronManager) saveEntry(entry *model.CronJobLog) {
	if m.db == nil || entry.ID == 0 {
		return
	}
	metadata, _ := json.Marshal(map[string]interface{}{"affected": entry.Affected})
	entry.Metadata = datatypes.JSON(metadata)
	if err := m.db.Save(entry).Error; err != nil {
		log.Warnw("[CRON] Failed to record job result", "job", entry.JobName, "error", err)
	}
}
