package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler manages the scheduled update passes
type Scheduler struct {
	cron    *gocron.Scheduler
	updates *DataUpdateService
}

// NewScheduler creates a new scheduler instance
func NewScheduler(updates *DataUpdateService) *Scheduler {
	return &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		updates: updates,
	}
}

// Start runs the on-start light pass and schedules the weekly full pass.
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Light pass immediately so a fresh deployment serves data without
	// waiting for the weekly cycle.
	s.updates.TryRun(false)

	// Full pass, price history included, every 7 days at midnight.
	s.cron.Every(7).Days().At("00:00").Do(func() {
		s.updates.TryRun(true)
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}
