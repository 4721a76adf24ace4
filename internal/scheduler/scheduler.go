package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/config"
	"gh-pr-relay/internal/models"
)

// Recurring job names, used for introspection and manual triggering.
const (
	JobDailyReminders  = "daily_pr_reminders"
	JobUrgentReminders = "urgent_pr_reminders"
	JobDailySummaries  = "daily_summaries"
	JobWeeklyCleanup   = "weekly_cleanup"
)

// NotificationStore is the slice of store behavior the scheduler needs.
type NotificationStore interface {
	UsersWithSlack() ([]models.User, error)
	GetUser(userID string) (*models.User, error)
	OldOpenPRs(userID string, thresholdDays, limit int) ([]models.PRNotification, error)
	DailySummaryData(userID string, attentionDays int) (*models.DailySummaryData, error)
	RetentionSweep(olderThanDays int) (int64, error)
}

// Dispatcher sends reminder and summary messages.
type Dispatcher interface {
	DispatchSingle(ctx context.Context, conn *models.SlackConnection, user *models.User, n *models.PRNotification) error
	DispatchBatch(ctx context.Context, conn *models.SlackConnection, user *models.User, notifications []models.PRNotification) error
	DispatchSummary(ctx context.Context, conn *models.SlackConnection, user *models.User, data *models.DailySummaryData) error
}

type oneOffJob struct {
	name  string
	runAt time.Time
	timer *time.Timer
}

// Scheduler owns the recurring reminder jobs and any one-off user reminders.
type Scheduler struct {
	cron       *cron.Cron
	config     *config.SchedulerConfig
	store      NotificationStore
	dispatcher Dispatcher
	entries    map[string]cron.EntryID
	oneOffs    map[string]*oneOffJob
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	isRunning  bool
	mu         sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, store NotificationStore, dispatcher Dispatcher) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		config:     cfg,
		store:      store,
		dispatcher: dispatcher,
		entries:    make(map[string]cron.EntryID),
		oneOffs:    make(map[string]*oneOffJob),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the recurring jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// Rebuild the cron and context so a stopped scheduler can be restarted.
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithSeconds())
	s.entries = make(map[string]cron.EntryID)

	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{JobDailyReminders, fmt.Sprintf("0 0 %d * * MON-FRI", s.config.DailyReminderHour), s.dailyReminders},
		{JobUrgentReminders, fmt.Sprintf("0 0 %d * * MON-FRI", s.config.UrgentReminderHour), s.urgentReminders},
		{JobDailySummaries, fmt.Sprintf("0 0 %d * * MON-FRI", s.config.DailySummaryHour), s.dailySummaries},
		{JobWeeklyCleanup, fmt.Sprintf("0 0 %d * * %s", s.config.WeeklyCleanupHour, s.config.WeeklyCleanupDay), s.weeklyCleanup},
	}

	for _, job := range jobs {
		entryID, err := s.cron.AddFunc(job.schedule, job.run)
		if err != nil {
			return fmt.Errorf("failed to add cron job %s: %w", job.name, err)
		}
		s.entries[job.name] = entryID
	}

	s.cron.Start()
	s.isRunning = true

	logrus.WithFields(logrus.Fields{
		"daily_hour":   s.config.DailyReminderHour,
		"urgent_hour":  s.config.UrgentReminderHour,
		"summary_hour": s.config.DailySummaryHour,
		"cleanup_day":  s.config.WeeklyCleanupDay,
	}).Info("Reminder scheduler started")
	return nil
}

// Stop cancels one-off jobs and stops the cron loop, waiting for running
// jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	for jobID, job := range s.oneOffs {
		job.timer.Stop()
		delete(s.oneOffs, jobID)
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Wait waits for in-flight jobs to finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunJobNow triggers one recurring job by name, synchronously.
func (s *Scheduler) RunJobNow(name string) error {
	switch name {
	case JobDailyReminders:
		s.dailyReminders()
	case JobUrgentReminders:
		s.urgentReminders()
	case JobDailySummaries:
		s.dailySummaries()
	case JobWeeklyCleanup:
		s.weeklyCleanup()
	default:
		return fmt.Errorf("unknown job: %s", name)
	}
	return nil
}

// TriggerUserReminder schedules a one-off reminder run for a single user and
// returns the job id.
func (s *Scheduler) TriggerUserReminder(userID string, runAt time.Time, thresholdDays, maxReminders int) (string, error) {
	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}

	jobID := uuid.NewString()
	timer := time.AfterFunc(delay, func() {
		s.wg.Add(1)
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.oneOffs, jobID)
		s.mu.Unlock()

		s.runUserReminder(userID, thresholdDays, maxReminders)
	})

	s.mu.Lock()
	s.oneOffs[jobID] = &oneOffJob{
		name:  fmt.Sprintf("user_reminder_%s", userID),
		runAt: runAt,
		timer: timer,
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"job_id":  jobID,
		"user_id": userID,
		"run_at":  runAt,
	}).Info("One-off reminder scheduled")
	return jobID, nil
}

// CancelJob cancels a pending one-off job. Returns false for unknown or
// already fired jobs.
func (s *Scheduler) CancelJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.oneOffs[jobID]
	if !ok {
		return false
	}
	job.timer.Stop()
	delete(s.oneOffs, jobID)
	logrus.WithField("job_id", jobID).Info("One-off reminder cancelled")
	return true
}

// Jobs lists the recurring entries and pending one-off jobs.
func (s *Scheduler) Jobs() []models.JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]models.JobInfo, 0, len(s.entries)+len(s.oneOffs))
	for name, entryID := range s.entries {
		entry := s.cron.Entry(entryID)
		info := models.JobInfo{ID: name, Name: name}
		if !entry.Next.IsZero() {
			next := entry.Next
			info.NextRun = &next
		}
		jobs = append(jobs, info)
	}
	for jobID, job := range s.oneOffs {
		runAt := job.runAt
		jobs = append(jobs, models.JobInfo{ID: jobID, Name: job.name, NextRun: &runAt})
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}
