package scheduler

import (
	"time"

	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/metrics"
	"gh-pr-relay/internal/models"
)

func (s *Scheduler) dailyReminders() {
	s.runReminders("daily", s.config.DailyThresholdDays, s.config.MaxRemindersPerUser)
}

func (s *Scheduler) urgentReminders() {
	s.runReminders("urgent", s.config.UrgentThresholdDays, s.config.MaxUrgentPerUser)
}

// RunReminders walks every connected user and reminds them about open PRs
// past the threshold. One user's failure never aborts the loop.
func (s *Scheduler) RunReminders(thresholdDays, maxPerUser int) {
	s.runReminders("manual", thresholdDays, maxPerUser)
}

func (s *Scheduler) runReminders(kind string, thresholdDays, maxPerUser int) {
	s.wg.Add(1)
	defer s.wg.Done()

	startTime := time.Now()
	metrics.ReminderRuns.Inc()
	logrus.WithFields(logrus.Fields{
		"kind":      kind,
		"threshold": thresholdDays,
	}).Info("Starting PR reminder run")

	users, err := s.store.UsersWithSlack()
	if err != nil {
		logrus.Errorf("Failed to list users for reminders: %v", err)
		return
	}
	if len(users) == 0 {
		logrus.Info("No users with Slack connections found")
		return
	}

	processedUsers := 0
	sentReminders := 0
	for i := range users {
		user := &users[i]
		count, err := s.remindUser(user, thresholdDays, maxPerUser)
		if err != nil {
			logrus.Errorf("Failed to send reminders to %s: %v", user.Email, err)
			continue
		}
		if count > 0 {
			processedUsers++
			sentReminders += count
		}
	}

	logrus.WithFields(logrus.Fields{
		"kind":            kind,
		"processed_users": processedUsers,
		"sent_reminders":  sentReminders,
		"duration":        time.Since(startTime),
	}).Info("PR reminder run completed")
}

func (s *Scheduler) remindUser(user *models.User, thresholdDays, maxPerUser int) (int, error) {
	if user.SlackConnection == nil {
		return 0, nil
	}

	oldPRs, err := s.store.OldOpenPRs(user.ID, thresholdDays, maxPerUser)
	if err != nil {
		return 0, err
	}
	if len(oldPRs) == 0 {
		logrus.Debugf("No old PRs found for user %s", user.Email)
		return 0, nil
	}

	if len(oldPRs) == 1 {
		if err := s.dispatcher.DispatchSingle(s.ctx, user.SlackConnection, user, &oldPRs[0]); err != nil {
			return 0, err
		}
	} else {
		if err := s.dispatcher.DispatchBatch(s.ctx, user.SlackConnection, user, oldPRs); err != nil {
			return 0, err
		}
	}
	return len(oldPRs), nil
}

func (s *Scheduler) dailySummaries() {
	s.RunSummaries()
}

// RunSummaries sends the morning digest to every connected user with open
// PRs. Users with nothing open are skipped.
func (s *Scheduler) RunSummaries() {
	s.wg.Add(1)
	defer s.wg.Done()

	logrus.Info("Starting daily summary run")

	users, err := s.store.UsersWithSlack()
	if err != nil {
		logrus.Errorf("Failed to list users for summaries: %v", err)
		return
	}

	processedUsers := 0
	for i := range users {
		user := &users[i]
		if user.SlackConnection == nil {
			continue
		}

		data, err := s.store.DailySummaryData(user.ID, s.config.AttentionDays)
		if err != nil {
			logrus.Errorf("Failed to build daily summary for %s: %v", user.Email, err)
			continue
		}
		if data.TotalOpen == 0 {
			logrus.Debugf("No open PRs for %s, skipping summary", user.Email)
			continue
		}

		if err := s.dispatcher.DispatchSummary(s.ctx, user.SlackConnection, user, data); err != nil {
			logrus.Errorf("Failed to send daily summary to %s: %v", user.Email, err)
			continue
		}
		processedUsers++
	}

	logrus.Infof("Daily summary run completed: %d summaries sent", processedUsers)
}

func (s *Scheduler) weeklyCleanup() {
	s.wg.Add(1)
	defer s.wg.Done()

	deleted, err := s.store.RetentionSweep(s.config.CleanupThresholdDays)
	if err != nil {
		logrus.Errorf("Weekly cleanup failed: %v", err)
		return
	}
	metrics.SweepDeletions.Add(float64(deleted))
}

func (s *Scheduler) runUserReminder(userID string, thresholdDays, maxReminders int) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		logrus.Errorf("Failed to load user %s for one-off reminder: %v", userID, err)
		return
	}
	if user == nil || user.SlackConnection == nil {
		logrus.Warnf("User %s missing or has no Slack connection, skipping one-off reminder", userID)
		return
	}

	count, err := s.remindUser(user, thresholdDays, maxReminders)
	if err != nil {
		logrus.Errorf("One-off reminder for %s failed: %v", user.Email, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"user_email": user.Email,
		"pr_count":   count,
	}).Info("One-off reminder completed")
}
