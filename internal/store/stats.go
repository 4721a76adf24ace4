package store

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"gh-pr-relay/internal/models"
)

type repoCount struct {
	RepoName string
	Count    int64
}

type dayCount struct {
	Day   string
	Count int64
}

// The summary endpoint reports how many open PRs sat untouched for over a
// week, independent of the requested period.
const summaryOldOpenDays = 7

// Stats aggregates a user's full notification history.
func (s *Store) Stats(userID string) (*models.StatsResponse, error) {
	base := func() *gorm.DB {
		return s.db.Model(&models.PRNotification{}).Where("user_id = ?", userID)
	}

	stats := &models.StatsResponse{
		ByStatus:       make(map[string]int64),
		ByRepository:   make(map[string]int64),
		RecentActivity: make(map[string]int64),
	}

	if err := base().Count(&stats.TotalNotifications).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	if err := base().Where("slack_sent = ?", true).Count(&stats.SlackSent).Error; err != nil {
		return nil, fmt.Errorf("failed to count sent notifications: %w", err)
	}
	stats.PendingSlack = stats.TotalNotifications - stats.SlackSent
	if err := base().Where("is_forwarded = ?", true).Count(&stats.ForwardedEmails).Error; err != nil {
		return nil, fmt.Errorf("failed to count forwarded notifications: %w", err)
	}

	for _, status := range []string{models.StatusOpened, models.StatusMerged, models.StatusClosed, models.StatusUpdated} {
		var count int64
		if err := base().Where("pr_status = ?", status).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count by status: %w", err)
		}
		stats.ByStatus[status] = count
	}

	var topRepos []repoCount
	err := base().Where("repo_name <> ''").
		Select("repo_name, COUNT(*) AS count").
		Group("repo_name").
		Order("count DESC").
		Limit(10).
		Scan(&topRepos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate repositories: %w", err)
	}
	for _, rc := range topRepos {
		stats.ByRepository[rc.RepoName] = rc.Count
	}
	if len(topRepos) > 0 {
		stats.MostActiveRepo = topRepos[0].RepoName
	}

	activity, err := s.dailyActivity(userID, 7, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	stats.RecentActivity = activity

	var oldestPending models.PRNotification
	result := base().Where("slack_sent = ?", false).Order("received_at ASC").First(&oldestPending)
	if result.Error == nil {
		t := oldestPending.ReceivedAt
		stats.OldestPendingPR = &t
	} else if result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to find oldest pending notification: %w", result.Error)
	}

	var newest models.PRNotification
	result = base().Order("received_at DESC").First(&newest)
	if result.Error == nil {
		t := newest.ReceivedAt
		stats.NewestPR = &t
	} else if result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to find newest notification: %w", result.Error)
	}

	return stats, nil
}

// Summary describes a user's PR activity over the trailing period.
func (s *Store) Summary(userID string, days int) (*models.SummaryResponse, error) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -days)
	period := func() *gorm.DB {
		return s.db.Model(&models.PRNotification{}).
			Where("user_id = ? AND received_at >= ?", userID, cutoff)
	}

	summary := &models.SummaryResponse{
		PeriodDays:    days,
		DailyActivity: make(map[string]int64),
	}

	if err := period().Count(&summary.TotalNotifications).Error; err != nil {
		return nil, fmt.Errorf("failed to count period notifications: %w", err)
	}
	if err := period().Where("pr_status = ?", models.StatusOpened).Count(&summary.NewPRs).Error; err != nil {
		return nil, fmt.Errorf("failed to count new PRs: %w", err)
	}
	if err := period().Where("pr_status = ?", models.StatusMerged).Count(&summary.MergedPRs).Error; err != nil {
		return nil, fmt.Errorf("failed to count merged PRs: %w", err)
	}
	if err := period().Where("pr_status = ?", models.StatusClosed).Count(&summary.ClosedPRs).Error; err != nil {
		return nil, fmt.Errorf("failed to count closed PRs: %w", err)
	}

	var repositories []string
	err := period().Where("repo_name <> ''").
		Distinct("repo_name").
		Pluck("repo_name", &repositories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to collect period repositories: %w", err)
	}
	summary.RepositoriesInvolved = repositories

	activity, err := s.dailyActivity(userID, days, now)
	if err != nil {
		return nil, err
	}
	summary.DailyActivity = activity

	err = s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND pr_status = ? AND slack_sent = ?", userID, models.StatusOpened, false).
		Count(&summary.PendingReviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending reviews: %w", err)
	}

	oldCutoff := now.AddDate(0, 0, -summaryOldOpenDays)
	err = s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND pr_status = ? AND received_at <= ?", userID, models.StatusOpened, oldCutoff).
		Count(&summary.OldOpenPRs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count old open PRs: %w", err)
	}

	if days > 0 {
		summary.NotificationRate = math.Round(float64(summary.TotalNotifications)/float64(days)*100) / 100
	}
	return summary, nil
}

// RepositoryStats describes one repository's activity, including a 30-day
// histogram.
func (s *Store) RepositoryStats(userID, repoName string) (*models.RepositoryStats, error) {
	repo := func() *gorm.DB {
		return s.db.Model(&models.PRNotification{}).
			Where("user_id = ? AND repo_name = ?", userID, repoName)
	}

	stats := &models.RepositoryStats{
		RepoName:       repoName,
		RecentActivity: make(map[string]int64),
	}

	if err := repo().Count(&stats.TotalPRs).Error; err != nil {
		return nil, fmt.Errorf("failed to count repository notifications: %w", err)
	}
	if err := repo().Where("pr_status = ?", models.StatusOpened).Count(&stats.OpenPRs).Error; err != nil {
		return nil, fmt.Errorf("failed to count open PRs: %w", err)
	}
	if err := repo().Where("pr_status = ?", models.StatusMerged).Count(&stats.MergedPRs).Error; err != nil {
		return nil, fmt.Errorf("failed to count merged PRs: %w", err)
	}
	if err := repo().Where("pr_status = ?", models.StatusClosed).Count(&stats.ClosedPRs).Error; err != nil {
		return nil, fmt.Errorf("failed to count closed PRs: %w", err)
	}

	var last models.PRNotification
	result := repo().Order("received_at DESC").First(&last)
	if result.Error == nil {
		t := last.ReceivedAt
		stats.LastActivity = &t
	} else if result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to find last activity: %w", result.Error)
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -30)
	var counts []dayCount
	err := repo().Where("received_at >= ?", cutoff).
		Select("DATE(received_at) AS day, COUNT(*) AS count").
		Group("day").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate repository activity: %w", err)
	}
	for i := 0; i < 30; i++ {
		stats.RecentActivity[cutoff.AddDate(0, 0, i).Format("2006-01-02")] = 0
	}
	for _, dc := range counts {
		stats.RecentActivity[dc.Day] = dc.Count
	}
	return stats, nil
}

// DailySummaryData computes the morning digest for one user.
func (s *Store) DailySummaryData(userID string, attentionDays int) (*models.DailySummaryData, error) {
	now := time.Now().UTC()
	data := &models.DailySummaryData{}

	err := s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND pr_status = ?", userID, models.StatusOpened).
		Count(&data.TotalOpen).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count open PRs: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	err = s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND received_at >= ?", userID, startOfDay).
		Count(&data.NewToday).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count today's PRs: %w", err)
	}

	attentionCutoff := now.AddDate(0, 0, -attentionDays)
	err = s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND pr_status = ? AND received_at <= ?", userID, models.StatusOpened, attentionCutoff).
		Count(&data.NeedsAttention).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count stale PRs: %w", err)
	}

	var pendingSlack int64
	err = s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND slack_sent = ?", userID, false).
		Count(&pendingSlack).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending notifications: %w", err)
	}

	var topRepos []repoCount
	err = s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND repo_name <> ''", userID).
		Select("repo_name, COUNT(*) AS count").
		Group("repo_name").
		Order("count DESC").
		Limit(1).
		Scan(&topRepos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find most active repository: %w", err)
	}
	if len(topRepos) > 0 {
		data.MostActiveRepo = topRepos[0].RepoName
	}

	if data.NeedsAttention > 0 {
		data.ActionItems = append(data.ActionItems,
			fmt.Sprintf("Review %d old open PR%s", data.NeedsAttention, plural(data.NeedsAttention)))
	}
	if pendingSlack > 0 {
		data.ActionItems = append(data.ActionItems,
			fmt.Sprintf("Check %d pending notifications", pendingSlack))
	}
	if data.NewToday > 0 {
		data.ActionItems = append(data.ActionItems,
			fmt.Sprintf("Review %d new PR%s from today", data.NewToday, plural(data.NewToday)))
	}
	return data, nil
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// dailyActivity prefills one bucket per day over the window and overlays
// actual counts.
func (s *Store) dailyActivity(userID string, days int, now time.Time) (map[string]int64, error) {
	cutoff := now.AddDate(0, 0, -days)
	activity := make(map[string]int64, days)
	for i := 0; i < days; i++ {
		activity[cutoff.AddDate(0, 0, i).Format("2006-01-02")] = 0
	}

	var counts []dayCount
	err := s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND received_at >= ?", userID, cutoff).
		Select("DATE(received_at) AS day, COUNT(*) AS count").
		Group("day").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily activity: %w", err)
	}
	for _, dc := range counts {
		activity[dc.Day] = dc.Count
	}
	return activity, nil
}
